package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowPrintsResolvedSettings(t *testing.T) {
	configPath, _ := writeCLIConfig(t)

	out, _, err := runCLI(t, configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# config path: "+configPath)
	requireContains(t, out, "test-channel")
}
