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

// Paths holds filesystem locations and the API bind address.
type Paths struct {
	// UploadDir is the root directory holding one subdirectory per job.
	UploadDir string `toml:"upload_dir"`
	// LogDir receives the daemon log file; empty disables file logging.
	LogDir string `toml:"log_dir"`
	// APIBind is the host:port the HTTP API listens on.
	APIBind string `toml:"api_bind"`
}

// Queue configures the Redis-backed work queue.
type Queue struct {
	RedisURL          string `toml:"redis_url"`
	Name              string `toml:"name"`
	WorkerCount       int    `toml:"worker_count"`
	JobTimeoutSeconds int    `toml:"job_timeout_seconds"`
}

// Media configures audio extraction and chunking.
type Media struct {
	FFmpegPath   string `toml:"ffmpeg_path"`
	FFprobePath  string `toml:"ffprobe_path"`
	ChunkSeconds int    `toml:"chunk_seconds"`
	SampleRate   int    `toml:"sample_rate"`
	Channels     int    `toml:"channels"`
}

// Provider holds the shared connection settings for the OpenAI-compatible
// API used by both transcription and summarization.
type Provider struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// Transcription configures the speech-to-text requests.
type Transcription struct {
	Model                  string  `toml:"model"`
	Language               string  `toml:"language"`
	TimeoutSeconds         int     `toml:"timeout_seconds"`
	MaxAttempts            int     `toml:"max_attempts"`
	RetryBackoffSeconds    float64 `toml:"retry_backoff_seconds"`
	RetryBackoffCapSeconds float64 `toml:"retry_backoff_cap_seconds"`
	// RequestsPerMinute rate-limits chunk uploads across the whole job; 0 disables the gate.
	RequestsPerMinute     float64 `toml:"requests_per_minute"`
	MaxConcurrentRequests int     `toml:"max_concurrent_requests"`
}

// Summarization configures the chat-completion summary request and the
// prompt construction budgets.
type Summarization struct {
	Model                  string  `toml:"model"`
	Temperature            float64 `toml:"temperature"`
	MaxOutputTokens        int     `toml:"max_output_tokens"`
	TimeoutSeconds         int     `toml:"timeout_seconds"`
	MaxAttempts            int     `toml:"max_attempts"`
	RetryBackoffSeconds    float64 `toml:"retry_backoff_seconds"`
	RetryBackoffCapSeconds float64 `toml:"retry_backoff_cap_seconds"`
	RequestsPerMinute      float64 `toml:"requests_per_minute"`
	PromptCharBudget       int     `toml:"prompt_char_budget"`
	SnippetCharLimit       int     `toml:"snippet_char_limit"`
	SectionSpanMS          int64   `toml:"section_span_ms"`
	MinutesPerSection      int     `toml:"minutes_per_section"`
	MinSections            int     `toml:"min_sections"`
	MaxSections            int     `toml:"max_sections"`
}

// Notifications configures the optional completion webhook.
type Notifications struct {
	WebhookURL            string `toml:"webhook_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging controls log output format and verbosity.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the minutes daemon and CLI.
//
// Configuration sections by subsystem:
//   - Paths: upload root, log directory, and API bind address
//   - Queue: Redis connection and worker pool sizing
//   - Media: ffmpeg/ffprobe binaries and audio chunking parameters
//   - Provider: shared OpenAI-compatible API connection settings
//   - Transcription: speech-to-text model, timeouts, and retry policy
//   - Summarization: summary model, prompt budgets, and retry policy
//   - Notifications: completion webhook settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Media         Media         `toml:"media"`
	Provider      Provider      `toml:"provider"`
	Transcription Transcription `toml:"transcription"`
	Summarization Summarization `toml:"summarization"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/minutes/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

	defaultPath, err := expandPath("~/.config/minutes/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("minutes.toml")
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

// EnsureDirectories creates the directories the daemon needs at startup.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
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

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// APIConfig bundles the connection settings for one OpenAI-compatible endpoint.
type APIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	UserAgent      string
	TimeoutSeconds int
}

// TranscriptionAPI returns the connection settings for speech-to-text requests.
func (c *Config) TranscriptionAPI() APIConfig {
	return APIConfig{
		APIKey:         strings.TrimSpace(c.Provider.APIKey),
		BaseURL:        strings.TrimSpace(c.Provider.BaseURL),
		Model:          strings.TrimSpace(c.Transcription.Model),
		UserAgent:      strings.TrimSpace(c.Provider.UserAgent),
		TimeoutSeconds: c.Transcription.TimeoutSeconds,
	}
}

// SummarizationAPI returns the connection settings for summary requests.
func (c *Config) SummarizationAPI() APIConfig {
	return APIConfig{
		APIKey:         strings.TrimSpace(c.Provider.APIKey),
		BaseURL:        strings.TrimSpace(c.Provider.BaseURL),
		Model:          strings.TrimSpace(c.Summarization.Model),
		UserAgent:      strings.TrimSpace(c.Provider.UserAgent),
		TimeoutSeconds: c.Summarization.TimeoutSeconds,
	}
}
