package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	requireContains(t, out, "provider.api_key")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	requireContains(t, string(data), "[paths]")
	requireContains(t, string(data), "[provider]")
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	_, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err == nil {
		t.Fatal("expected overwrite refusal")
	}
	requireContains(t, err.Error(), "already exists")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", "")
	if err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
}

func TestConfigShowRedactsAPIKey(t *testing.T) {
	t.Setenv("MINUTES_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(
		"[paths]\nupload_dir = %q\nlog_dir = %q\n\n[provider]\napi_key = \"sk-secret\"\n",
		filepath.Join(base, "uploads"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := runCLI(t, []string{"config", "show"}, "", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# config path: "+configPath)
	requireContains(t, out, "[redacted]")
	if strings.Contains(out, "sk-secret") {
		t.Fatalf("expected API key to be redacted, got %q", out)
	}
}

func TestConfigShowDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("MINUTES_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	configPath := filepath.Join(t.TempDir(), "missing.toml")

	out, _, err := runCLI(t, []string{"config", "show"}, "", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# file not found, showing defaults")
	requireContains(t, out, "redis://localhost:6379/0")
}
