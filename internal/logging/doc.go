// Package logging builds the slog loggers used across apogee and provides
// standardized attribute helpers so item, stage, and queue fields use
// consistent keys.
package logging
