// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"apogee/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Channel.ID = "test-channel"
	cfg.Channel.Name = "Test Channel"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithChannelID overrides the channel identifier on the test config.
func WithChannelID(id string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Channel.ID = id
	}
}

// WithEmbeddingDimension overrides the embedding vector width.
func WithEmbeddingDimension(dim int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.EmbeddingDimension = dim
	}
}
