package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"minutes/internal/artifacts"
	"minutes/internal/jobstate"
)

func TestSubmitUploadsRecording(t *testing.T) {
	daemon := newFakeDaemon(t)

	recording := filepath.Join(t.TempDir(), "standup.mp4")
	if err := os.WriteFile(recording, []byte("data"), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}

	out, _, err := runCLI(t, []string{"submit", recording}, daemon.url(), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Accepted standup.mp4 as job job-new")
	requireContains(t, out, "minutes status job-new")

	uploads := daemon.recordedUploads()
	if len(uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploads))
	}
	if uploads[0].filename != "standup.mp4" {
		t.Errorf("filename: expected standup.mp4, got %q", uploads[0].filename)
	}
	if uploads[0].contentType != "video/mp4" {
		t.Errorf("content type: expected video/mp4, got %q", uploads[0].contentType)
	}
	if uploads[0].size != int64(len("data")) {
		t.Errorf("size: expected %d, got %d", len("data"), uploads[0].size)
	}
}

func TestSubmitJSONOutput(t *testing.T) {
	daemon := newFakeDaemon(t)

	recording := filepath.Join(t.TempDir(), "retro.webm")
	if err := os.WriteFile(recording, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}

	out, _, err := runCLI(t, []string{"submit", "--json", recording}, daemon.url(), "")
	if err != nil {
		t.Fatalf("submit --json: %v", err)
	}
	var result uploadResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if result.JobID != "job-new" {
		t.Fatalf("expected job-new, got %q", result.JobID)
	}
}

func TestSubmitMissingFile(t *testing.T) {
	_, _, err := runCLI(t, []string{"submit", filepath.Join(t.TempDir(), "absent.mp4")}, "http://127.0.0.1:1", "")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	requireContains(t, err.Error(), "does not exist")
}

func TestSubmitRejectsDirectory(t *testing.T) {
	_, _, err := runCLI(t, []string{"submit", t.TempDir()}, "http://127.0.0.1:1", "")
	if err == nil {
		t.Fatal("expected error for directory argument")
	}
	requireContains(t, err.Error(), "is a directory")
}

func TestStatusRendersDetail(t *testing.T) {
	daemon := newFakeDaemon(t)
	detail := completedDetail("job-1")
	detail.QualityMetrics = &artifacts.SummaryQualityMetrics{
		CoverageRatio:           1,
		ReferencedSegmentsRatio: 0.5,
		AverageSummaryWordCount: 12,
		ActionItemCount:         1,
	}
	daemon.addDetail(detail)

	out, _, err := runCLI(t, []string{"status", "job-1"}, daemon.url(), "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Job job-1 ==")
	requireContains(t, out, "[OK] Completed")
	requireContains(t, out, "summary (4/4)")
	requireContains(t, out, "100%")
	requireContains(t, out, "9s")
	requireContains(t, out, "English, French")
	requireContains(t, out, "coverage 100%, referenced 50%, avg 12 words")
	requireContains(t, out, "[INFO] yes")
}

func TestStatusRendersFailure(t *testing.T) {
	daemon := newFakeDaemon(t)
	detail := completedDetail("job-2")
	detail.Status = jobstate.StatusFailed
	detail.CanDelete = false
	detail.Failure = &jobstate.Failure{
		Stage:      "transcription",
		Message:    "chunk 3 exhausted retries",
		OccurredAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	daemon.addDetail(detail)

	out, _, err := runCLI(t, []string{"status", "job-2"}, daemon.url(), "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[ERROR] Failed")
	requireContains(t, out, "transcription: chunk 3 exhausted retries")
}

func TestStatusJSONOutput(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.addDetail(completedDetail("job-3"))

	out, _, err := runCLI(t, []string{"status", "--json", "job-3"}, daemon.url(), "")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var detail jobstate.Detail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if detail.JobID != "job-3" {
		t.Fatalf("expected job-3, got %q", detail.JobID)
	}
	if detail.Status != jobstate.StatusCompleted {
		t.Fatalf("expected completed, got %s", detail.Status)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	daemon := newFakeDaemon(t)

	_, _, err := runCLI(t, []string{"status", "missing"}, daemon.url(), "")
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	requireContains(t, err.Error(), "job not found")
	requireContains(t, err.Error(), "404")
}

func TestListRendersTable(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.addDetail(completedDetail("job-a"))
	processing := completedDetail("job-b").Summary
	processing.Status = jobstate.StatusProcessing
	processing.Progress = 0.4
	processing.StageIndex = 3
	processing.StageKey = "transcription"
	processing.CanDelete = false
	daemon.addJob(processing)

	out, _, err := runCLI(t, []string{"list"}, daemon.url(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "JOB ID")
	requireContains(t, out, "job-a")
	requireContains(t, out, "job-b")
	requireContains(t, out, "Processing")
}

func TestListEmpty(t *testing.T) {
	daemon := newFakeDaemon(t)

	out, _, err := runCLI(t, []string{"list"}, daemon.url(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "No jobs found")
}

func TestListCompletedOnly(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.addDetail(completedDetail("job-done"))
	pending := completedDetail("job-waiting").Summary
	pending.Status = jobstate.StatusPending
	daemon.addJob(pending)

	out, _, err := runCLI(t, []string{"list", "--completed"}, daemon.url(), "")
	if err != nil {
		t.Fatalf("list --completed: %v", err)
	}
	requireContains(t, out, "job-done")
	if strings.Contains(out, "job-waiting") {
		t.Fatalf("expected pending job to be filtered out, got %q", out)
	}
}

func TestHealthReportsDaemonAndJobs(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.addDetail(completedDetail("job-a"))
	failed := completedDetail("job-b").Summary
	failed.Status = jobstate.StatusFailed
	daemon.addJob(failed)

	out, _, err := runCLI(t, []string{"health"}, daemon.url(), "")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "[OK] ok at "+daemon.url())
	requireContains(t, out, "2 total (1 completed, 1 failed)")
}

func TestHealthDegraded(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.setHealthy(false)

	out, _, err := runCLI(t, []string{"health"}, daemon.url(), "")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "[WARN] degraded")
}

func TestHealthDaemonUnreachable(t *testing.T) {
	daemon := newFakeDaemon(t)
	url := daemon.url()
	daemon.server.Close()

	_, _, err := runCLI(t, []string{"health"}, url, "")
	if err == nil {
		t.Fatal("expected error when daemon is unreachable")
	}
	requireContains(t, err.Error(), "connect to daemon")
}

func TestBaseURLResolvedFromConfig(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.addDetail(completedDetail("job-cfg"))

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	bind := strings.TrimPrefix(daemon.url(), "http://")
	writeTestConfig(t, configPath,
		filepath.Join(base, "uploads"), filepath.Join(base, "logs"), bind)

	out, _, err := runCLI(t, []string{"status", "job-cfg"}, "", configPath)
	if err != nil {
		t.Fatalf("status via config bind: %v", err)
	}
	requireContains(t, out, "job-cfg")
}
