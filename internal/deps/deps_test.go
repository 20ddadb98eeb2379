package deps

import (
	"os"
	"path/filepath"
	"testing"

	"minutes/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "   "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available {
		t.Fatalf("expected blank command to be unavailable")
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %s", results[2].Detail)
	}
}

func TestRequiredResolvesProbeBesideTranscoder(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpegPath = "/opt/tools/ffmpeg"
	cfg.Media.FFprobePath = ""

	reqs := Required(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "/opt/tools/ffmpeg" {
		t.Fatalf("unexpected ffmpeg command: %s", reqs[0].Command)
	}
	if reqs[1].Command != "/opt/tools/ffprobe" {
		t.Fatalf("expected probe beside transcoder, got %s", reqs[1].Command)
	}
}

func TestRequiredHonorsExplicitProbePath(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpegPath = "/opt/tools/ffmpeg"
	cfg.Media.FFprobePath = "/usr/local/bin/ffprobe"

	reqs := Required(&cfg)
	if reqs[1].Command != "/usr/local/bin/ffprobe" {
		t.Fatalf("expected explicit probe path, got %s", reqs[1].Command)
	}
}

func TestCheckFindsStubBinaries(t *testing.T) {
	binDir := t.TempDir()
	script := []byte("#!/bin/sh\nexit 0\n")
	ffmpegPath := filepath.Join(binDir, "ffmpeg")
	ffprobePath := filepath.Join(binDir, "ffprobe")
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if err := os.WriteFile(ffprobePath, script, 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}

	cfg := config.Default()
	cfg.Media.FFmpegPath = ffmpegPath
	cfg.Media.FFprobePath = ""

	statuses := Check(&cfg)
	for _, status := range statuses {
		if !status.Available {
			t.Fatalf("expected %s to be available, got detail %q", status.Name, status.Detail)
		}
	}
	if missing := MissingRequired(statuses); len(missing) != 0 {
		t.Fatalf("expected no missing dependencies, got %#v", missing)
	}
}

func TestMissingRequiredReportsUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpegPath = "definitely-not-ffmpeg"
	cfg.Media.FFprobePath = "definitely-not-ffprobe"

	missing := MissingRequired(Check(&cfg))
	if len(missing) != 2 {
		t.Fatalf("expected both binaries reported missing, got %#v", missing)
	}
	for _, status := range missing {
		if status.Detail == "" {
			t.Fatalf("expected detail for %s", status.Name)
		}
	}
}

func TestMissingRequiredSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Name: "Extra", Optional: true, Available: false},
		{Name: "Core", Optional: false, Available: true},
	}
	if missing := MissingRequired(statuses); len(missing) != 0 {
		t.Fatalf("optional or available entries must not be reported, got %#v", missing)
	}
}
