package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are checked
// separately by ValidateWorker because the CLI can operate without them.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSummarization(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

// ValidateWorker extends Validate with requirements that only apply when the
// processing daemon runs, such as provider credentials.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/minutes/config.toml"
		}
		return fmt.Errorf("provider.api_key is required. Set MINUTES_API_KEY or OPENAI_API_KEY env var or edit %s (create with 'minutes config init')", defaultPath)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if strings.TrimSpace(c.Queue.RedisURL) == "" {
		return errors.New("queue.redis_url must be set")
	}
	if strings.TrimSpace(c.Queue.Name) == "" {
		return errors.New("queue.name must be set")
	}
	return ensurePositiveMap(map[string]int{
		"queue.worker_count":        c.Queue.WorkerCount,
		"queue.job_timeout_seconds": c.Queue.JobTimeoutSeconds,
	})
}

func (c *Config) validateMedia() error {
	if strings.TrimSpace(c.Media.FFmpegPath) == "" {
		return errors.New("media.ffmpeg_path must be set")
	}
	if strings.TrimSpace(c.Media.FFprobePath) == "" {
		return errors.New("media.ffprobe_path must be set")
	}
	return ensurePositiveMap(map[string]int{
		"media.chunk_seconds": c.Media.ChunkSeconds,
		"media.sample_rate":   c.Media.SampleRate,
		"media.channels":      c.Media.Channels,
	})
}

func (c *Config) validateProvider() error {
	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		return errors.New("provider.base_url must be set")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if err := ensurePositiveMap(map[string]int{
		"transcription.timeout_seconds":         c.Transcription.TimeoutSeconds,
		"transcription.max_attempts":            c.Transcription.MaxAttempts,
		"transcription.max_concurrent_requests": c.Transcription.MaxConcurrentRequests,
	}); err != nil {
		return err
	}
	if c.Transcription.RetryBackoffSeconds <= 0 {
		return errors.New("transcription.retry_backoff_seconds must be positive")
	}
	if c.Transcription.RetryBackoffCapSeconds < c.Transcription.RetryBackoffSeconds {
		return errors.New("transcription.retry_backoff_cap_seconds must be >= transcription.retry_backoff_seconds")
	}
	if c.Transcription.RequestsPerMinute < 0 {
		return errors.New("transcription.requests_per_minute must be >= 0")
	}
	return nil
}

func (c *Config) validateSummarization() error {
	if err := ensurePositiveMap(map[string]int{
		"summarization.timeout_seconds":     c.Summarization.TimeoutSeconds,
		"summarization.max_attempts":        c.Summarization.MaxAttempts,
		"summarization.max_output_tokens":   c.Summarization.MaxOutputTokens,
		"summarization.prompt_char_budget":  c.Summarization.PromptCharBudget,
		"summarization.snippet_char_limit":  c.Summarization.SnippetCharLimit,
		"summarization.minutes_per_section": c.Summarization.MinutesPerSection,
		"summarization.min_sections":        c.Summarization.MinSections,
	}); err != nil {
		return err
	}
	if c.Summarization.Temperature < 0 || c.Summarization.Temperature > 2 {
		return errors.New("summarization.temperature must be between 0 and 2")
	}
	if c.Summarization.RetryBackoffSeconds <= 0 {
		return errors.New("summarization.retry_backoff_seconds must be positive")
	}
	if c.Summarization.RetryBackoffCapSeconds < c.Summarization.RetryBackoffSeconds {
		return errors.New("summarization.retry_backoff_cap_seconds must be >= summarization.retry_backoff_seconds")
	}
	if c.Summarization.RequestsPerMinute < 0 {
		return errors.New("summarization.requests_per_minute must be >= 0")
	}
	if c.Summarization.SnippetCharLimit > c.Summarization.PromptCharBudget {
		return errors.New("summarization.snippet_char_limit must not exceed summarization.prompt_char_budget")
	}
	if c.Summarization.SectionSpanMS <= 0 {
		return errors.New("summarization.section_span_ms must be positive")
	}
	if c.Summarization.MaxSections < c.Summarization.MinSections {
		return errors.New("summarization.max_sections must be >= summarization.min_sections")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
