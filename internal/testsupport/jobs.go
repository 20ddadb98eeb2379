package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"minutes/internal/artifacts"
)

// SeedSourceJob creates a job directory holding only the uploaded source
// file, the state a job is in before ingest runs.
func SeedSourceJob(t testing.TB, root, jobID string) string {
	t.Helper()
	dir := filepath.Join(root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create job dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meeting.mp4"), []byte("src"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return dir
}

// SeedCompletedJob creates a job directory carrying the full artifact set of
// a finished pipeline run: source, media manifest, two transcript segments,
// one summary item, one action item, and quality metrics.
func SeedCompletedJob(t testing.TB, root, jobID string) string {
	t.Helper()
	dir := SeedSourceJob(t, root, jobID)

	if err := artifacts.SaveMediaAssets(dir, []artifacts.MediaAsset{{
		AssetID:    jobID + "-master",
		JobID:      jobID,
		Kind:       artifacts.KindAudioMaster,
		Path:       filepath.Join(dir, "meeting_audio.wav"),
		Order:      -1,
		DurationMS: 9000,
		EndMS:      9000,
	}}); err != nil {
		t.Fatalf("write media manifest: %v", err)
	}
	if err := artifacts.SaveTranscriptSegments(dir, []artifacts.TranscriptSegment{
		{SegmentID: "s0", JobID: jobID, Order: 0, StartMS: 0, EndMS: 4000, Text: "hello", Language: "en"},
		{SegmentID: "s1", JobID: jobID, Order: 1, StartMS: 4000, EndMS: 9000, Text: "goodbye", Language: "en"},
	}); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	if err := artifacts.SaveSummaryItems(dir, []artifacts.SummaryItem{
		{SummaryID: "sum0", JobID: jobID, Order: 0, SegmentStartMS: 0, SegmentEndMS: 9000, SummaryText: "a short meeting"},
	}); err != nil {
		t.Fatalf("write summaries: %v", err)
	}
	if err := artifacts.SaveActionItems(dir, []artifacts.ActionItem{
		{ActionID: "act0", JobID: jobID, Order: 0, Description: "circulate notes"},
	}); err != nil {
		t.Fatalf("write actions: %v", err)
	}
	if err := artifacts.SaveSummaryQuality(dir, artifacts.SummaryQualityMetrics{
		CoverageRatio:           1,
		ReferencedSegmentsRatio: 1,
		AverageSummaryWordCount: 3,
		ActionItemCount:         1,
	}); err != nil {
		t.Fatalf("write quality metrics: %v", err)
	}
	return dir
}
