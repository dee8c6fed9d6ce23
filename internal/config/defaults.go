package config

const (
	defaultStagingDir = "~/.local/share/apogee/staging"
	defaultLogDir     = "~/.local/share/apogee/logs"

	defaultTopicSimilarityThreshold  = 0.75
	defaultScriptSimilarityThreshold = 0.80
	defaultRepetitionPauseThreshold  = 0.70
	defaultTopicWindow               = 50
	defaultScriptWindow              = 50
	defaultSceneWindow               = 10
	defaultMaxScriptRetries          = 2
	defaultMaxFactCheckAttempts      = 2
	defaultMaxStageRetries           = 2
	defaultStageTimeoutSeconds       = 300
	defaultEmbeddingDimension        = 384

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "text"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Channel: Channel{
			Language: "pt-BR",
		},
		Pipeline: Pipeline{
			TopicSimilarityThreshold:  defaultTopicSimilarityThreshold,
			ScriptSimilarityThreshold: defaultScriptSimilarityThreshold,
			RepetitionPauseThreshold:  defaultRepetitionPauseThreshold,
			TopicWindow:               defaultTopicWindow,
			ScriptWindow:              defaultScriptWindow,
			SceneWindow:               defaultSceneWindow,
			MaxScriptRetries:          defaultMaxScriptRetries,
			MaxFactCheckAttempts:      defaultMaxFactCheckAttempts,
			MaxStageRetries:           defaultMaxStageRetries,
			StageTimeout:              defaultStageTimeoutSeconds,
			EmbeddingDimension:        defaultEmbeddingDimension,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
