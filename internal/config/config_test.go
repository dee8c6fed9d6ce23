package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"apogee/internal/config"
)

func TestDefaultThresholds(t *testing.T) {
	cfg := config.Default()
	if cfg.Pipeline.TopicSimilarityThreshold != 0.75 {
		t.Fatalf("topic threshold = %v, want 0.75", cfg.Pipeline.TopicSimilarityThreshold)
	}
	if cfg.Pipeline.ScriptSimilarityThreshold != 0.80 {
		t.Fatalf("script threshold = %v, want 0.80", cfg.Pipeline.ScriptSimilarityThreshold)
	}
	if cfg.Pipeline.RepetitionPauseThreshold != 0.70 {
		t.Fatalf("repetition threshold = %v, want 0.70", cfg.Pipeline.RepetitionPauseThreshold)
	}
	if cfg.Pipeline.MaxScriptRetries != 2 || cfg.Pipeline.MaxFactCheckAttempts != 2 {
		t.Fatalf("unexpected retry budgets: %+v", cfg.Pipeline)
	}
}

func TestValidateRejectsMissingChannel(t *testing.T) {
	cfg := config.Default()
	cfg.Channel.ID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty channel.id")
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.Channel.ID = "test-channel"
	cfg.Pipeline.TopicSimilarityThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for threshold out of range")
	}
}

func TestValidateRejectsHeartbeatTimeoutBelowInterval(t *testing.T) {
	cfg := config.Default()
	cfg.Channel.ID = "test-channel"
	cfg.Workflow.HeartbeatInterval = 60
	cfg.Workflow.HeartbeatTimeout = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for heartbeat timeout <= interval")
	}
}

func TestLoadParsesFileAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := strings.Join([]string{
		"[paths]",
		`staging_dir = "` + filepath.Join(dir, "staging") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[channel]",
		`id = "chan-1"`,
		`name = "Apogee Engine"`,
		"[pipeline]",
		"max_script_retries = 1",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Pipeline.MaxScriptRetries != 1 {
		t.Fatalf("max_script_retries = %d, want 1", cfg.Pipeline.MaxScriptRetries)
	}
	// Untouched fields keep defaults.
	if cfg.Pipeline.TopicSimilarityThreshold != 0.75 {
		t.Fatalf("topic threshold = %v, want default", cfg.Pipeline.TopicSimilarityThreshold)
	}
	if !filepath.IsAbs(cfg.Paths.StagingDir) {
		t.Fatalf("staging dir not absolute: %q", cfg.Paths.StagingDir)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "topic_similarity_threshold") {
		t.Fatal("sample config missing pipeline section")
	}
}
