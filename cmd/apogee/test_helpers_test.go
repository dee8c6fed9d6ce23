package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"apogee/internal/config"
	"apogee/internal/queue"
	"apogee/internal/testsupport"
)

func writeCLIConfig(t *testing.T) (string, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, cfg
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func seedItem(t *testing.T, cfg *config.Config, title string) *queue.Item {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Errorf("close store: %v", closeErr)
		}
	}()

	item, err := store.CreateItem(context.Background(), cfg.Channel.ID, title, nil)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func fetchItem(t *testing.T, cfg *config.Config, id string) *queue.Item {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	item, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get item %s: %v", id, err)
	}
	return item
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
