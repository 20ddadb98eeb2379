package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"minutes/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Provider.APIKey = "test-key"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRedisURL points the queue at the given Redis URL.
func WithRedisURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.RedisURL = url
	}
}

// WithLanguage sets the default transcription language hint.
func WithLanguage(code string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.Language = code
	}
}

// WithoutProviderKey clears the provider credential so worker validation
// failures can be exercised.
func WithoutProviderKey() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Provider.APIKey = ""
	}
}

// WithStubBinaries writes executable ffmpeg and ffprobe stubs under a temp
// directory and points the media configuration at them, so dependency
// preflight passes without the real tools installed.
func WithStubBinaries() ConfigOption {
	return func(b *configBuilder) {
		b.t.Helper()
		binDir := b.t.TempDir()
		script := []byte("#!/bin/sh\nexit 0\n")
		ffmpegPath := filepath.Join(binDir, "ffmpeg")
		ffprobePath := filepath.Join(binDir, "ffprobe")
		if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
			b.t.Fatalf("write ffmpeg stub: %v", err)
		}
		if err := os.WriteFile(ffprobePath, script, 0o755); err != nil {
			b.t.Fatalf("write ffprobe stub: %v", err)
		}
		b.cfg.Media.FFmpegPath = ffmpegPath
		b.cfg.Media.FFprobePath = ffprobePath
	}
}
