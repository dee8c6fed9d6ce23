package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// Channel describes the content channel this deployment produces for.
type Channel struct {
	ID             string `toml:"id"`
	Name           string `toml:"name"`
	Niche          string `toml:"niche"`
	Tone           string `toml:"tone"`
	TargetAudience string `toml:"target_audience"`
	Language       string `toml:"language"`
}

// Pipeline contains gate thresholds and retry budgets for the orchestrator.
type Pipeline struct {
	// TopicSimilarityThreshold rejects topic candidates whose max cosine
	// similarity against the recent window is strictly greater than this.
	TopicSimilarityThreshold float64 `toml:"topic_similarity_threshold"`
	// ScriptSimilarityThreshold blocks scripts the same way; blocks count
	// toward the script retry budget.
	ScriptSimilarityThreshold float64 `toml:"script_similarity_threshold"`
	// RepetitionPauseThreshold pauses rendering when the composite
	// repetition score is strictly greater than this.
	RepetitionPauseThreshold float64 `toml:"repetition_pause_threshold"`
	TopicWindow              int     `toml:"topic_window"`
	ScriptWindow             int     `toml:"script_window"`
	SceneWindow              int     `toml:"scene_window"`
	MaxScriptRetries         int     `toml:"max_script_retries"`
	MaxFactCheckAttempts     int     `toml:"max_fact_check_attempts"`
	MaxStageRetries          int     `toml:"max_stage_retries"`
	StageTimeout             int     `toml:"stage_timeout"`
	EmbeddingDimension       int     `toml:"embedding_dimension"`
}

// Workflow contains daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Notifications contains configuration for the operator signal channel.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for apogee.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Channel       Channel       `toml:"channel"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/apogee/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("apogee.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	staging, err := expandPath(c.Paths.StagingDir)
	if err != nil {
		return err
	}
	c.Paths.StagingDir = staging

	logDir, err := expandPath(c.Paths.LogDir)
	if err != nil {
		return err
	}
	c.Paths.LogDir = logDir

	c.Channel.ID = strings.TrimSpace(c.Channel.ID)
	c.Channel.Name = strings.TrimSpace(c.Channel.Name)
	c.Channel.Language = strings.TrimSpace(c.Channel.Language)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.StoryboardDir(), c.AssetsDir(), c.VideosDir(), c.PublishedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StoryboardDir returns the directory storyboard JSON artifacts are written to.
func (c *Config) StoryboardDir() string {
	return filepath.Join(c.Paths.StagingDir, "storyboards")
}

// AssetsDir returns the directory generated visual assets land in.
func (c *Config) AssetsDir() string {
	return filepath.Join(c.Paths.StagingDir, "assets")
}

// VideosDir returns the directory rendered videos land in.
func (c *Config) VideosDir() string {
	return filepath.Join(c.Paths.StagingDir, "videos")
}

// PublishedDir returns the directory verified copies of published videos
// are archived to.
func (c *Config) PublishedDir() string {
	return filepath.Join(c.Paths.StagingDir, "published")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
