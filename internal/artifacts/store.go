package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"minutes/internal/services"
)

// Fixed artifact filenames under each job directory.
const (
	MediaAssetsFile        = "media_assets.json"
	TranscriptSegmentsFile = "transcript_segments.json"
	SummaryItemsFile       = "summary_items.json"
	ActionItemsFile        = "action_items.json"
	SummaryQualityFile     = "summary_quality.json"
	JobFailureFile         = "job_failed.json"

	// ChunkDirName is the subdirectory holding audio chunk files.
	ChunkDirName = "audio_chunks"
)

// ChunkDir returns the audio chunk directory for a job.
func ChunkDir(jobDir string) string {
	return filepath.Join(jobDir, ChunkDirName)
}

// SaveMediaAssets writes the media asset manifest for a job.
func SaveMediaAssets(jobDir string, assets []MediaAsset) error {
	return saveList(jobDir, MediaAssetsFile, assets)
}

// LoadMediaAssets reads the media asset manifest, returning an empty slice
// when the manifest has not been produced yet.
func LoadMediaAssets(jobDir string) ([]MediaAsset, error) {
	return loadList[MediaAsset](jobDir, MediaAssetsFile)
}

// SaveTranscriptSegments writes the ordered transcript for a job.
func SaveTranscriptSegments(jobDir string, segments []TranscriptSegment) error {
	return saveList(jobDir, TranscriptSegmentsFile, segments)
}

// LoadTranscriptSegments reads the transcript, returning an empty slice when
// it has not been produced yet.
func LoadTranscriptSegments(jobDir string) ([]TranscriptSegment, error) {
	return loadList[TranscriptSegment](jobDir, TranscriptSegmentsFile)
}

// SaveSummaryItems writes the summary sections for a job.
func SaveSummaryItems(jobDir string, items []SummaryItem) error {
	return saveList(jobDir, SummaryItemsFile, items)
}

// LoadSummaryItems reads the summary sections.
func LoadSummaryItems(jobDir string) ([]SummaryItem, error) {
	return loadList[SummaryItem](jobDir, SummaryItemsFile)
}

// SaveActionItems writes the extracted action items for a job.
func SaveActionItems(jobDir string, items []ActionItem) error {
	return saveList(jobDir, ActionItemsFile, items)
}

// LoadActionItems reads the extracted action items.
func LoadActionItems(jobDir string) ([]ActionItem, error) {
	return loadList[ActionItem](jobDir, ActionItemsFile)
}

// SaveSummaryQuality writes the quality metrics object for a job.
func SaveSummaryQuality(jobDir string, metrics SummaryQualityMetrics) error {
	return writeArtifact(jobDir, SummaryQualityFile, metrics)
}

// LoadSummaryQuality reads the quality metrics. It returns nil when the file
// is absent.
func LoadSummaryQuality(jobDir string) (*SummaryQualityMetrics, error) {
	data, err := readArtifact(jobDir, SummaryQualityFile)
	if err != nil || data == nil {
		return nil, err
	}
	var metrics SummaryQualityMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "", "load artifact", SummaryQualityFile+" is not a JSON object", err)
	}
	return &metrics, nil
}

// MarkJobFailed overwrites the failure marker for a job. A nil details map
// is stored as an empty mapping.
func MarkJobFailed(jobDir, stage, message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	record := JobFailureRecord{
		Stage:      stage,
		Message:    message,
		OccurredAt: time.Now().UTC(),
		Details:    details,
	}
	return writeArtifact(jobDir, JobFailureFile, record)
}

// ClearJobFailure removes the failure marker if present.
func ClearJobFailure(jobDir string) error {
	err := os.Remove(filepath.Join(jobDir, JobFailureFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove failure marker: %w", err)
	}
	return nil
}

// LoadJobFailure reads the failure marker, returning nil when no marker
// exists. Records written before the details field existed load with an
// empty details mapping; records missing stage, message, or occurred_at are
// malformed.
func LoadJobFailure(jobDir string) (*JobFailureRecord, error) {
	data, err := readArtifact(jobDir, JobFailureFile)
	if err != nil || data == nil {
		return nil, err
	}

	var raw struct {
		Stage      *string        `json:"stage"`
		Message    *string        `json:"message"`
		OccurredAt *string        `json:"occurred_at"`
		Details    map[string]any `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "", "load artifact", JobFailureFile+" is not a JSON object", err)
	}
	if raw.Stage == nil || raw.Message == nil || raw.OccurredAt == nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "", "load artifact", JobFailureFile+" is missing required fields", nil)
	}
	occurredAt, err := parseArtifactTime(*raw.OccurredAt)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "", "load artifact", "invalid occurred_at in "+JobFailureFile, err)
	}
	details := raw.Details
	if details == nil {
		details = map[string]any{}
	}
	return &JobFailureRecord{
		Stage:      *raw.Stage,
		Message:    *raw.Message,
		OccurredAt: occurredAt,
		Details:    details,
	}, nil
}

// HasJobFailure reports whether a failure marker file exists, without
// parsing it.
func HasJobFailure(jobDir string) bool {
	info, err := os.Stat(filepath.Join(jobDir, JobFailureFile))
	return err == nil && !info.IsDir()
}

func saveList[T any](jobDir, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	return writeArtifact(jobDir, name, items)
}

func loadList[T any](jobDir, name string) ([]T, error) {
	data, err := readArtifact(jobDir, name)
	if err != nil || data == nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "", "load artifact", name+" is not a JSON array", err)
	}
	return items, nil
}

func readArtifact(jobDir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(jobDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// writeArtifact persists v as indented JSON via a temp-file rename so
// concurrent readers never see a partial write. Non-ASCII text is written
// as-is rather than escaped.
func writeArtifact(jobDir, name string, v any) error {
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return fmt.Errorf("create job directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(jobDir, name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// parseArtifactTime accepts RFC 3339 timestamps and the zone-less form
// older markers were written with; the latter is taken as UTC.
func parseArtifactTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
