package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"minutes/internal/config"
)

func TestLoadDefaultsUseEnvAPIKeyAndExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MINUTES_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("MINUTES_REDIS_URL", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantUploads := filepath.Join(tempHome, ".local", "share", "minutes", "uploads")
	if cfg.Paths.UploadDir != wantUploads {
		t.Fatalf("unexpected upload dir: got %q want %q", cfg.Paths.UploadDir, wantUploads)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8460" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.BaseURL != config.Default().Provider.BaseURL {
		t.Fatalf("unexpected base url: %q", cfg.Provider.BaseURL)
	}
	if cfg.Queue.Name != "minutes" {
		t.Fatalf("unexpected queue name: %q", cfg.Queue.Name)
	}
	if cfg.Queue.RedisURL != config.Default().Queue.RedisURL {
		t.Fatalf("unexpected redis url: %q", cfg.Queue.RedisURL)
	}
	if cfg.Media.ChunkSeconds != 900 {
		t.Fatalf("unexpected chunk seconds: %d", cfg.Media.ChunkSeconds)
	}
	if cfg.Summarization.PromptCharBudget != config.Default().Summarization.PromptCharBudget {
		t.Fatalf("unexpected prompt budget: %d", cfg.Summarization.PromptCharBudget)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("MINUTES_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MINUTES_REDIS_URL", "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "minutes.toml")

	type payload struct {
		Provider struct {
			APIKey string `toml:"api_key"`
		} `toml:"provider"`
		Queue struct {
			Name        string `toml:"name"`
			WorkerCount int    `toml:"worker_count"`
		} `toml:"queue"`
		Summarization struct {
			SnippetCharLimit int `toml:"snippet_char_limit"`
			MaxSections      int `toml:"max_sections"`
		} `toml:"summarization"`
	}
	custom := payload{}
	custom.Provider.APIKey = "abc123"
	custom.Queue.Name = "minutes-test"
	custom.Queue.WorkerCount = 5
	custom.Summarization.SnippetCharLimit = 800
	custom.Summarization.MaxSections = 40
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Provider.APIKey != "abc123" {
		t.Fatalf("expected API key from file, got %q", cfg.Provider.APIKey)
	}
	if cfg.Queue.Name != "minutes-test" {
		t.Fatalf("expected queue name override, got %q", cfg.Queue.Name)
	}
	if cfg.Queue.WorkerCount != 5 {
		t.Fatalf("expected worker count 5, got %d", cfg.Queue.WorkerCount)
	}
	if cfg.Summarization.SnippetCharLimit != 800 {
		t.Fatalf("expected snippet limit 800, got %d", cfg.Summarization.SnippetCharLimit)
	}
	if cfg.Summarization.MaxSections != 40 {
		t.Fatalf("expected max sections 40, got %d", cfg.Summarization.MaxSections)
	}
	if cfg.Transcription.Model != config.Default().Transcription.Model {
		t.Fatalf("expected default transcription model, got %q", cfg.Transcription.Model)
	}
}

func TestEnvVarOverridesConfigFileForAPIKey(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "minutes.toml")

	type payload struct {
		Provider struct {
			APIKey string `toml:"api_key"`
		} `toml:"provider"`
	}
	custom := payload{}
	custom.Provider.APIKey = "file-key"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("MINUTES_API_KEY", "env-key")
	t.Setenv("OPENAI_API_KEY", "fallback-key")
	t.Setenv("MINUTES_REDIS_URL", "")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("expected MINUTES_API_KEY to win, got %q", cfg.Provider.APIKey)
	}

	t.Setenv("MINUTES_API_KEY", "")
	cfg, _, _, err = config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Provider.APIKey != "fallback-key" {
		t.Errorf("expected OPENAI_API_KEY fallback, got %q", cfg.Provider.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_openai_api_key_here") {
		t.Fatalf("sample config missing placeholder API key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.UploadDir, "minutes") {
			t.Fatalf("expected upload dir to contain minutes, got %q", cfg.Paths.UploadDir)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.WorkerCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive worker count")
	}

	cfg = config.Default()
	cfg.Media.ChunkSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive chunk seconds")
	}

	cfg = config.Default()
	cfg.Transcription.RetryBackoffCapSeconds = cfg.Transcription.RetryBackoffSeconds / 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when backoff cap below base")
	}

	cfg = config.Default()
	cfg.Summarization.SnippetCharLimit = cfg.Summarization.PromptCharBudget + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when snippet limit exceeds prompt budget")
	}

	cfg = config.Default()
	cfg.Summarization.MaxSections = cfg.Summarization.MinSections - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max sections below min")
	}

	cfg = config.Default()
	cfg.Summarization.Temperature = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range temperature")
	}
}

func TestValidateWorkerRequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.APIKey = ""
	err := cfg.ValidateWorker()
	if err == nil {
		t.Fatal("expected error when API key missing")
	}
	if !strings.Contains(err.Error(), "provider.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Provider.APIKey = "key"
	if err := cfg.ValidateWorker(); err != nil {
		t.Fatalf("ValidateWorker failed with key set: %v", err)
	}
}
