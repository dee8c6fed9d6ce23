// Package notifications delivers workflow events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The Service interface enumerates the pipeline milestones an
// operator cares about so stage handlers emit consistent messages without
// duplicating HTTP glue.
package notifications
