package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateChannel(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateChannel() error {
	if strings.TrimSpace(c.Channel.ID) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/apogee/config.toml"
		}
		return fmt.Errorf("channel.id is required. Edit %s (create with 'apogee config init')", defaultPath)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	thresholds := map[string]float64{
		"pipeline.topic_similarity_threshold":  c.Pipeline.TopicSimilarityThreshold,
		"pipeline.script_similarity_threshold": c.Pipeline.ScriptSimilarityThreshold,
		"pipeline.repetition_pause_threshold":  c.Pipeline.RepetitionPauseThreshold,
	}
	for _, name := range sortedKeys(thresholds) {
		if v := thresholds[name]; v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if err := ensurePositive(map[string]int{
		"pipeline.topic_window":        c.Pipeline.TopicWindow,
		"pipeline.script_window":       c.Pipeline.ScriptWindow,
		"pipeline.scene_window":        c.Pipeline.SceneWindow,
		"pipeline.stage_timeout":       c.Pipeline.StageTimeout,
		"pipeline.embedding_dimension": c.Pipeline.EmbeddingDimension,
	}); err != nil {
		return err
	}
	if c.Pipeline.MaxScriptRetries < 0 {
		return errors.New("pipeline.max_script_retries must not be negative")
	}
	if c.Pipeline.MaxFactCheckAttempts < 0 {
		return errors.New("pipeline.max_fact_check_attempts must not be negative")
	}
	if c.Pipeline.MaxStageRetries < 0 {
		return errors.New("pipeline.max_stage_retries must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositive(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for _, name := range sortedIntKeys(values) {
		if values[name] <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIntKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
