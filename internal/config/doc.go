// Package config loads, validates, and normalizes the apogee TOML
// configuration. Thresholds and retry budgets live here so the pipeline
// never reads ambient global state.
package config
