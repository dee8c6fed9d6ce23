// Package main hosts the apogee CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the daemon loop (run), one-shot topic
// mining (mine), queue maintenance (queue list/status/retry/resume/fail/
// clear), configuration scaffolding (config init/show), and the operator
// notification probe (test-notify). It centralizes configuration resolution
// and store access so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
