package config

// Default configuration values.
const (
	defaultUploadDir = "~/.local/share/minutes/uploads"
	defaultLogDir    = "~/.local/share/minutes/logs"
	defaultAPIBind   = "127.0.0.1:8460"

	defaultRedisURL          = "redis://localhost:6379/0"
	defaultQueueName         = "minutes"
	defaultWorkerCount       = 2
	defaultJobTimeoutSeconds = 900

	defaultFFmpegPath   = "ffmpeg"
	defaultFFprobePath  = "ffprobe"
	defaultChunkSeconds = 900
	defaultSampleRate   = 16000
	defaultChannels     = 1

	defaultBaseURL   = "https://api.openai.com/v1"
	defaultUserAgent = "minutes/0.1"

	defaultTranscriptionModel          = "gpt-4o-transcribe"
	defaultTranscriptionTimeoutSeconds = 300
	defaultMaxAttempts                 = 3
	defaultRetryBackoffSeconds         = 1.0
	defaultRetryBackoffCapSeconds      = 30.0
	defaultMaxConcurrentRequests       = 4

	defaultSummaryModel          = "gpt-4o-mini"
	defaultSummaryTemperature    = 0.2
	defaultSummaryTimeoutSeconds = 300
	defaultMaxOutputTokens       = 1500
	defaultPromptCharBudget      = 20000
	defaultSnippetCharLimit      = 1600
	defaultSectionSpanMS         = 300000
	defaultMinutesPerSection     = 3
	defaultMinSections           = 6
	defaultMaxSections           = 32

	defaultNotifyTimeoutSeconds = 30
	defaultLogLevel             = "info"
)

// Default returns the baseline configuration before any file or environment
// overrides are applied.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Queue: Queue{
			RedisURL:          defaultRedisURL,
			Name:              defaultQueueName,
			WorkerCount:       defaultWorkerCount,
			JobTimeoutSeconds: defaultJobTimeoutSeconds,
		},
		Media: Media{
			FFmpegPath:   defaultFFmpegPath,
			FFprobePath:  defaultFFprobePath,
			ChunkSeconds: defaultChunkSeconds,
			SampleRate:   defaultSampleRate,
			Channels:     defaultChannels,
		},
		Provider: Provider{
			BaseURL:   defaultBaseURL,
			UserAgent: defaultUserAgent,
		},
		Transcription: Transcription{
			Model:                  defaultTranscriptionModel,
			TimeoutSeconds:         defaultTranscriptionTimeoutSeconds,
			MaxAttempts:            defaultMaxAttempts,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			RetryBackoffCapSeconds: defaultRetryBackoffCapSeconds,
			RequestsPerMinute:      0,
			MaxConcurrentRequests:  defaultMaxConcurrentRequests,
		},
		Summarization: Summarization{
			Model:                  defaultSummaryModel,
			Temperature:            defaultSummaryTemperature,
			MaxOutputTokens:        defaultMaxOutputTokens,
			TimeoutSeconds:         defaultSummaryTimeoutSeconds,
			MaxAttempts:            defaultMaxAttempts,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			RetryBackoffCapSeconds: defaultRetryBackoffCapSeconds,
			RequestsPerMinute:      0,
			PromptCharBudget:       defaultPromptCharBudget,
			SnippetCharLimit:       defaultSnippetCharLimit,
			SectionSpanMS:          defaultSectionSpanMS,
			MinutesPerSection:      defaultMinutesPerSection,
			MinSections:            defaultMinSections,
			MaxSections:            defaultMaxSections,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format: "",
			Level:  defaultLogLevel,
		},
	}
}
