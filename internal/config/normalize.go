package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeMedia()
	c.normalizeProvider()
	c.normalizeTranscription()
	c.normalizeSummarization()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = defaultUploadDir
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if value := strings.TrimSpace(os.Getenv("MINUTES_REDIS_URL")); value != "" {
		c.Queue.RedisURL = value
	}
	c.Queue.RedisURL = strings.TrimSpace(c.Queue.RedisURL)
	if c.Queue.RedisURL == "" {
		c.Queue.RedisURL = defaultRedisURL
	}
	c.Queue.Name = strings.TrimSpace(c.Queue.Name)
	if c.Queue.Name == "" {
		c.Queue.Name = defaultQueueName
	}
	if c.Queue.WorkerCount <= 0 {
		c.Queue.WorkerCount = defaultWorkerCount
	}
	if c.Queue.JobTimeoutSeconds <= 0 {
		c.Queue.JobTimeoutSeconds = defaultJobTimeoutSeconds
	}
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegPath = strings.TrimSpace(c.Media.FFmpegPath)
	if c.Media.FFmpegPath == "" {
		c.Media.FFmpegPath = defaultFFmpegPath
	}
	c.Media.FFprobePath = strings.TrimSpace(c.Media.FFprobePath)
	if c.Media.FFprobePath == "" {
		c.Media.FFprobePath = defaultFFprobePath
	}
	if c.Media.ChunkSeconds <= 0 {
		c.Media.ChunkSeconds = defaultChunkSeconds
	}
	if c.Media.SampleRate <= 0 {
		c.Media.SampleRate = defaultSampleRate
	}
	if c.Media.Channels <= 0 {
		c.Media.Channels = defaultChannels
	}
}

// normalizeProvider applies environment overrides for credentials so
// deployments can keep the API key out of the config file entirely.
// MINUTES_API_KEY wins over OPENAI_API_KEY, and both win over the file.
func (c *Config) normalizeProvider() {
	if value := strings.TrimSpace(os.Getenv("MINUTES_API_KEY")); value != "" {
		c.Provider.APIKey = value
	} else if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		c.Provider.APIKey = value
	}
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	c.Provider.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.Provider.BaseURL), "/")
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaultBaseURL
	}
	c.Provider.UserAgent = strings.TrimSpace(c.Provider.UserAgent)
	if c.Provider.UserAgent == "" {
		c.Provider.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptionTimeoutSeconds
	}
	if c.Transcription.MaxAttempts <= 0 {
		c.Transcription.MaxAttempts = defaultMaxAttempts
	}
	if c.Transcription.RetryBackoffSeconds <= 0 {
		c.Transcription.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Transcription.RetryBackoffCapSeconds <= 0 {
		c.Transcription.RetryBackoffCapSeconds = defaultRetryBackoffCapSeconds
	}
	if c.Transcription.RequestsPerMinute < 0 {
		c.Transcription.RequestsPerMinute = 0
	}
	if c.Transcription.MaxConcurrentRequests <= 0 {
		c.Transcription.MaxConcurrentRequests = defaultMaxConcurrentRequests
	}
}

func (c *Config) normalizeSummarization() {
	c.Summarization.Model = strings.TrimSpace(c.Summarization.Model)
	if c.Summarization.Model == "" {
		c.Summarization.Model = defaultSummaryModel
	}
	if c.Summarization.Temperature < 0 {
		c.Summarization.Temperature = defaultSummaryTemperature
	}
	if c.Summarization.MaxOutputTokens <= 0 {
		c.Summarization.MaxOutputTokens = defaultMaxOutputTokens
	}
	if c.Summarization.TimeoutSeconds <= 0 {
		c.Summarization.TimeoutSeconds = defaultSummaryTimeoutSeconds
	}
	if c.Summarization.MaxAttempts <= 0 {
		c.Summarization.MaxAttempts = defaultMaxAttempts
	}
	if c.Summarization.RetryBackoffSeconds <= 0 {
		c.Summarization.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Summarization.RetryBackoffCapSeconds <= 0 {
		c.Summarization.RetryBackoffCapSeconds = defaultRetryBackoffCapSeconds
	}
	if c.Summarization.RequestsPerMinute < 0 {
		c.Summarization.RequestsPerMinute = 0
	}
	if c.Summarization.PromptCharBudget <= 0 {
		c.Summarization.PromptCharBudget = defaultPromptCharBudget
	}
	if c.Summarization.SnippetCharLimit <= 0 {
		c.Summarization.SnippetCharLimit = defaultSnippetCharLimit
	}
	if c.Summarization.SectionSpanMS <= 0 {
		c.Summarization.SectionSpanMS = defaultSectionSpanMS
	}
	if c.Summarization.MinutesPerSection <= 0 {
		c.Summarization.MinutesPerSection = defaultMinutesPerSection
	}
	if c.Summarization.MinSections <= 0 {
		c.Summarization.MinSections = defaultMinSections
	}
	if c.Summarization.MaxSections <= 0 {
		c.Summarization.MaxSections = defaultMaxSections
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		c.Logging.Format = ""
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
