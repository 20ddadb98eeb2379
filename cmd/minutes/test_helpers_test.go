package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"minutes/internal/jobstate"
)

// fakeDaemon serves the slice of the daemon API the CLI talks to.
type fakeDaemon struct {
	server *httptest.Server

	mu      sync.Mutex
	jobs    []jobstate.Summary
	details map[string]jobstate.Detail
	uploads []uploadRecord
	healthy bool
}

type uploadRecord struct {
	filename    string
	contentType string
	size        int64
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()

	f := &fakeDaemon{
		details: make(map[string]jobstate.Detail),
		healthy: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if !f.healthStatus() {
			status = "degraded"
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": status})
	})
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, f.jobList(nil))
	})
	mux.HandleFunc("/api/meetings", func(w http.ResponseWriter, r *http.Request) {
		completed := jobstate.StatusCompleted
		writeJSONResponse(w, http.StatusOK, f.jobList(&completed))
	})
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		f.mu.Lock()
		detail, ok := f.details[jobID]
		f.mu.Unlock()
		if !ok {
			writeJSONResponse(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		writeJSONResponse(w, http.StatusOK, detail)
	})
	mux.HandleFunc("/api/uploads", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "multipart field \"file\" is required"})
			return
		}
		defer file.Close()
		size, _ := io.Copy(io.Discard, file)
		f.mu.Lock()
		f.uploads = append(f.uploads, uploadRecord{
			filename:    header.Filename,
			contentType: header.Header.Get("Content-Type"),
			size:        size,
		})
		f.mu.Unlock()
		writeJSONResponse(w, http.StatusAccepted, map[string]string{
			"job_id":     "job-new",
			"status_url": "/api/jobs/job-new",
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDaemon) url() string {
	return f.server.URL
}

func (f *fakeDaemon) healthStatus() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

func (f *fakeDaemon) setHealthy(healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = healthy
}

func (f *fakeDaemon) jobList(only *jobstate.Status) []jobstate.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]jobstate.Summary, 0, len(f.jobs))
	for _, job := range f.jobs {
		if only == nil || job.Status == *only {
			list = append(list, job)
		}
	}
	return list
}

func (f *fakeDaemon) addJob(summary jobstate.Summary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, summary)
	f.details[summary.JobID] = jobstate.Detail{Summary: summary}
}

func (f *fakeDaemon) addDetail(detail jobstate.Detail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, detail.Summary)
	f.details[detail.JobID] = detail
}

func (f *fakeDaemon) recordedUploads() []uploadRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	uploads := make([]uploadRecord, len(f.uploads))
	copy(uploads, f.uploads)
	return uploads
}

func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runCLI(t *testing.T, args []string, apiURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiURL != "" {
		flags = append(flags, "--api", apiURL)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeTestConfig(t *testing.T, path, uploadDir, logDir, apiBind string) {
	t.Helper()
	content := fmt.Sprintf("[paths]\nupload_dir = %q\nlog_dir = %q\napi_bind = %q\n",
		uploadDir, logDir, apiBind)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func completedDetail(jobID string) jobstate.Detail {
	duration := int64(9000)
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return jobstate.Detail{
		Summary: jobstate.Summary{
			JobID:           jobID,
			Status:          jobstate.StatusCompleted,
			CreatedAt:       created,
			UpdatedAt:       created.Add(2 * time.Minute),
			Progress:        1,
			StageIndex:      4,
			StageCount:      4,
			StageKey:        "summary",
			DurationMS:      &duration,
			Languages:       []string{"en", "fr"},
			SummaryCount:    2,
			ActionItemCount: 1,
			CanDelete:       true,
		},
	}
}
