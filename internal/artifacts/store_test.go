package artifacts_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"minutes/internal/artifacts"
	"minutes/internal/services"
)

func TestMediaAssetRoundTripPreservesOrder(t *testing.T) {
	jobDir := t.TempDir()
	assets := []artifacts.MediaAsset{
		{AssetID: "master", JobID: "job-1", Kind: artifacts.KindAudioMaster, Path: "audio.wav", Order: -1, DurationMS: 1800000, StartMS: 0, EndMS: 1800000, SampleRate: 16000, Channels: 1},
		{AssetID: "c0", JobID: "job-1", Kind: artifacts.KindAudioChunk, Path: "audio_chunks/audio_chunk_0000.wav", Order: 0, DurationMS: 900000, StartMS: 0, EndMS: 900000, ParentAssetID: "master"},
		{AssetID: "c1", JobID: "job-1", Kind: artifacts.KindAudioChunk, Path: "audio_chunks/audio_chunk_0001.wav", Order: 1, DurationMS: 900000, StartMS: 900000, EndMS: 1800000, ParentAssetID: "master"},
	}

	if err := artifacts.SaveMediaAssets(jobDir, assets); err != nil {
		t.Fatalf("SaveMediaAssets failed: %v", err)
	}
	loaded, err := artifacts.LoadMediaAssets(jobDir)
	if err != nil {
		t.Fatalf("LoadMediaAssets failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(loaded))
	}
	for i := range assets {
		if loaded[i].AssetID != assets[i].AssetID {
			t.Fatalf("asset %d: got %q want %q", i, loaded[i].AssetID, assets[i].AssetID)
		}
	}
	if loaded[0].Order != -1 || loaded[2].EndMS != 1800000 {
		t.Fatalf("unexpected field values: %+v", loaded)
	}
}

func TestLoadReturnsEmptyWhenAbsent(t *testing.T) {
	jobDir := t.TempDir()

	segments, err := artifacts.LoadTranscriptSegments(jobDir)
	if err != nil {
		t.Fatalf("LoadTranscriptSegments failed: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %d", len(segments))
	}

	quality, err := artifacts.LoadSummaryQuality(jobDir)
	if err != nil {
		t.Fatalf("LoadSummaryQuality failed: %v", err)
	}
	if quality != nil {
		t.Fatalf("expected nil quality, got %+v", quality)
	}
}

func TestLoadRejectsWrongShape(t *testing.T) {
	jobDir := t.TempDir()
	path := filepath.Join(jobDir, artifacts.SummaryItemsFile)
	if err := os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	_, err := artifacts.LoadSummaryItems(jobDir)
	if err == nil {
		t.Fatal("expected error for non-array artifact")
	}
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed marker, got %v", err)
	}
}

func TestSaveWritesUnescapedUTF8(t *testing.T) {
	jobDir := t.TempDir()
	segments := []artifacts.TranscriptSegment{
		{SegmentID: "s0", JobID: "job-1", Order: 0, StartMS: 0, EndMS: 1000, Text: "danke schön, 你好"},
	}
	if err := artifacts.SaveTranscriptSegments(jobDir, segments); err != nil {
		t.Fatalf("SaveTranscriptSegments failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(jobDir, artifacts.TranscriptSegmentsFile))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(data), "danke schön, 你好") {
		t.Fatalf("expected raw UTF-8 in artifact, got %s", data)
	}
}

func TestSaveNilListWritesEmptyArray(t *testing.T) {
	jobDir := t.TempDir()
	if err := artifacts.SaveActionItems(jobDir, nil); err != nil {
		t.Fatalf("SaveActionItems failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(jobDir, artifacts.ActionItemsFile))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("expected empty array, got %s", data)
	}
}

func TestSaveCreatesJobDirectory(t *testing.T) {
	jobDir := filepath.Join(t.TempDir(), "job-abc")
	if err := artifacts.SaveMediaAssets(jobDir, []artifacts.MediaAsset{}); err != nil {
		t.Fatalf("SaveMediaAssets failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(jobDir, artifacts.MediaAssetsFile)); err != nil {
		t.Fatalf("expected manifest to exist: %v", err)
	}
}

func TestFailureMarkerLifecycle(t *testing.T) {
	jobDir := t.TempDir()

	record, err := artifacts.LoadJobFailure(jobDir)
	if err != nil {
		t.Fatalf("LoadJobFailure failed: %v", err)
	}
	if record != nil {
		t.Fatalf("expected no marker, got %+v", record)
	}

	if err := artifacts.MarkJobFailed(jobDir, artifacts.StageTranscription, "upstream returned 500", map[string]any{"status_code": 500}); err != nil {
		t.Fatalf("MarkJobFailed failed: %v", err)
	}
	if !artifacts.HasJobFailure(jobDir) {
		t.Fatal("expected marker to exist")
	}

	record, err = artifacts.LoadJobFailure(jobDir)
	if err != nil {
		t.Fatalf("LoadJobFailure failed: %v", err)
	}
	if record.Stage != artifacts.StageTranscription {
		t.Fatalf("unexpected stage: %q", record.Stage)
	}
	if record.Message != "upstream returned 500" {
		t.Fatalf("unexpected message: %q", record.Message)
	}
	if record.OccurredAt.IsZero() || record.OccurredAt.Location() != time.UTC {
		t.Fatalf("expected UTC occurred_at, got %v", record.OccurredAt)
	}
	if record.Details["status_code"] == nil {
		t.Fatalf("expected details to carry status_code: %+v", record.Details)
	}

	if err := artifacts.ClearJobFailure(jobDir); err != nil {
		t.Fatalf("ClearJobFailure failed: %v", err)
	}
	if artifacts.HasJobFailure(jobDir) {
		t.Fatal("expected marker to be removed")
	}
	if err := artifacts.ClearJobFailure(jobDir); err != nil {
		t.Fatalf("ClearJobFailure on absent marker failed: %v", err)
	}
}

func TestLoadJobFailureToleratesLegacyShape(t *testing.T) {
	jobDir := t.TempDir()
	legacy := `{"stage": "summary", "message": "model unavailable", "occurred_at": "2024-11-05T12:30:45.123456"}`
	if err := os.WriteFile(filepath.Join(jobDir, artifacts.JobFailureFile), []byte(legacy), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	record, err := artifacts.LoadJobFailure(jobDir)
	if err != nil {
		t.Fatalf("LoadJobFailure failed: %v", err)
	}
	if record.Stage != artifacts.StageSummary {
		t.Fatalf("unexpected stage: %q", record.Stage)
	}
	if record.Details == nil || len(record.Details) != 0 {
		t.Fatalf("expected empty details mapping, got %+v", record.Details)
	}
	if record.OccurredAt.Year() != 2024 {
		t.Fatalf("unexpected occurred_at: %v", record.OccurredAt)
	}

	// Re-writing the loaded record must persist the defaulted mapping.
	if err := artifacts.MarkJobFailed(jobDir, record.Stage, record.Message, record.Details); err != nil {
		t.Fatalf("MarkJobFailed failed: %v", err)
	}
	reloaded, err := artifacts.LoadJobFailure(jobDir)
	if err != nil {
		t.Fatalf("LoadJobFailure after rewrite failed: %v", err)
	}
	if reloaded.Details == nil || len(reloaded.Details) != 0 {
		t.Fatalf("expected empty details after rewrite, got %+v", reloaded.Details)
	}
}

func TestLoadJobFailureRejectsMissingFields(t *testing.T) {
	jobDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(jobDir, artifacts.JobFailureFile), []byte(`{"stage": "upload"}`), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	_, err := artifacts.LoadJobFailure(jobDir)
	if err == nil {
		t.Fatal("expected error for incomplete marker")
	}
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed marker, got %v", err)
	}
}

func TestSummaryQualityRoundTrip(t *testing.T) {
	jobDir := t.TempDir()
	confidence := 0.87
	metrics := artifacts.SummaryQualityMetrics{
		CoverageRatio:           0.75,
		ReferencedSegmentsRatio: 0.5,
		AverageSummaryWordCount: 42.5,
		ActionItemCount:         3,
		LLMConfidence:           &confidence,
	}
	if err := artifacts.SaveSummaryQuality(jobDir, metrics); err != nil {
		t.Fatalf("SaveSummaryQuality failed: %v", err)
	}

	loaded, err := artifacts.LoadSummaryQuality(jobDir)
	if err != nil {
		t.Fatalf("LoadSummaryQuality failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected metrics")
	}
	if loaded.CoverageRatio != 0.75 || loaded.ActionItemCount != 3 {
		t.Fatalf("unexpected metrics: %+v", loaded)
	}
	if loaded.LLMConfidence == nil || *loaded.LLMConfidence != 0.87 {
		t.Fatalf("unexpected confidence: %+v", loaded.LLMConfidence)
	}
}
