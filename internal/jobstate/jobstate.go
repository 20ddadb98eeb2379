package jobstate

import (
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"minutes/internal/artifacts"
	"minutes/internal/language"
	"minutes/internal/logging"
	"minutes/internal/services"
)

// Status is the coarse lifecycle phase derived from a job's artifact tree.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StageCount is the number of pipeline stages a job passes through.
const StageCount = 4

var stageOrder = []string{
	artifacts.StageUpload,
	artifacts.StageChunking,
	artifacts.StageTranscription,
	artifacts.StageSummary,
}

var stageIndexes = func() map[string]int {
	indexes := make(map[string]int, len(stageOrder))
	for i, stage := range stageOrder {
		indexes[stage] = i + 1
	}
	return indexes
}()

// StageIndex returns the 1-based position of a stage key. Unknown keys map
// to the first stage so a bad marker can never break a status response.
func StageIndex(stage string) int {
	if index, ok := stageIndexes[stage]; ok {
		return index
	}
	return 1
}

// Failure mirrors the on-disk failure marker in API payloads.
type Failure struct {
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Summary is the short-form state of one job for dashboards and lists.
type Summary struct {
	JobID           string    `json:"job_id"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Progress        float64   `json:"progress"`
	StageIndex      int       `json:"stage_index"`
	StageCount      int       `json:"stage_count"`
	StageKey        string    `json:"stage_key"`
	DurationMS      *int64    `json:"duration_ms"`
	Languages       []string  `json:"languages"`
	SummaryCount    int       `json:"summary_count"`
	ActionItemCount int       `json:"action_item_count"`
	CanDelete       bool      `json:"can_delete"`
	Failure         *Failure  `json:"failure,omitempty"`
}

// Detail extends Summary with the quality metrics computed during
// summarization, when present.
type Detail struct {
	Summary
	QualityMetrics *artifacts.SummaryQualityMetrics `json:"quality_metrics"`
}

// Reader derives job state from directories under the upload root.
type Reader struct {
	uploadRoot string
	logger     *slog.Logger
}

// NewReader builds a Reader rooted at uploadRoot.
func NewReader(uploadRoot string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reader{
		uploadRoot: uploadRoot,
		logger:     logging.NewComponentLogger(logger, "jobstate"),
	}
}

// UploadRoot returns the root directory the reader scans.
func (r *Reader) UploadRoot() string { return r.uploadRoot }

// JobDir returns the directory that holds the job's artifacts.
func (r *Reader) JobDir(jobID string) string {
	return filepath.Join(r.uploadRoot, jobID)
}

// Exists reports whether the job directory is present.
func (r *Reader) Exists(jobID string) bool {
	info, err := os.Stat(r.JobDir(jobID))
	return err == nil && info.IsDir()
}

// List summarizes every job directory under the upload root, most recently
// updated first. A missing root yields an empty list.
func (r *Reader) List() ([]Summary, error) {
	entries, err := os.ReadDir(r.uploadRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrValidation, "jobstate", "list",
			"read upload root", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		summaries = append(summaries, r.Summarize(entry.Name()))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Get returns detailed state for one job, or services.ErrNotFound when no
// directory exists for the ID.
func (r *Reader) Get(jobID string) (*Detail, error) {
	if !r.Exists(jobID) {
		return nil, services.Wrap(services.ErrNotFound, "jobstate", "get",
			"job "+jobID+" not found", nil)
	}
	summary := r.Summarize(jobID)
	quality, err := artifacts.LoadSummaryQuality(r.JobDir(jobID))
	if err != nil {
		r.logger.Warn("unreadable quality metrics",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		quality = nil
	}
	return &Detail{Summary: summary, QualityMetrics: quality}, nil
}

// Summarize folds the job directory's contents into a Summary. It never
// fails; unreadable artifacts are treated as not yet produced.
func (r *Reader) Summarize(jobID string) Summary {
	jobDir := r.JobDir(jobID)

	segments := r.loadSegments(jobID, jobDir)
	summaryItems, _ := artifacts.LoadSummaryItems(jobDir)
	actionItems, _ := artifacts.LoadActionItems(jobDir)

	languageValues := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment.Language != "" {
			languageValues = append(languageValues, segment.Language)
		}
	}
	languages := language.NormalizeSet(languageValues)
	if languages == nil {
		languages = []string{}
	}

	createdAt, updatedAt := directoryTimes(jobDir)

	summary := Summary{
		JobID:           jobID,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
		StageCount:      StageCount,
		DurationMS:      masterDuration(jobDir),
		Languages:       languages,
		SummaryCount:    len(summaryItems),
		ActionItemCount: len(actionItems),
	}

	if record := r.loadFailure(jobID, jobDir); record != nil {
		summary.StageKey = record.Stage
		summary.StageIndex = StageIndex(record.Stage)
		summary.Status = StatusFailed
		summary.Failure = &Failure{
			Stage:      record.Stage,
			Message:    record.Message,
			OccurredAt: record.OccurredAt,
		}
		summary.Progress = roundProgress(summary.StageIndex)
		return summary
	}

	index, key := detectStage(jobDir)
	summary.StageIndex = index
	summary.StageKey = key
	summary.Status = statusForStage(index)
	summary.Progress = roundProgress(index)
	summary.CanDelete = index >= StageCount
	return summary
}

func (r *Reader) loadSegments(jobID, jobDir string) []artifacts.TranscriptSegment {
	segments, err := artifacts.LoadTranscriptSegments(jobDir)
	if err != nil {
		r.logger.Warn("unreadable transcript segments",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return nil
	}
	return segments
}

func (r *Reader) loadFailure(jobID, jobDir string) *artifacts.JobFailureRecord {
	record, err := artifacts.LoadJobFailure(jobDir)
	if err != nil {
		r.logger.Warn("unreadable failure marker",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return nil
	}
	return record
}

// detectStage reports the furthest stage with artifacts on disk.
func detectStage(jobDir string) (int, string) {
	if fileExists(filepath.Join(jobDir, artifacts.SummaryItemsFile)) {
		return StageCount, artifacts.StageSummary
	}
	if fileExists(filepath.Join(jobDir, artifacts.TranscriptSegmentsFile)) {
		return 3, artifacts.StageTranscription
	}
	if matches, _ := filepath.Glob(filepath.Join(artifacts.ChunkDir(jobDir), "*.wav")); len(matches) > 0 {
		return 2, artifacts.StageChunking
	}
	return 1, artifacts.StageUpload
}

func statusForStage(index int) Status {
	switch {
	case index >= StageCount:
		return StatusCompleted
	case index >= 2:
		return StatusProcessing
	default:
		return StatusPending
	}
}

func roundProgress(index int) float64 {
	return math.Round(float64(index)/StageCount*1000) / 1000
}

// masterDuration reads the audio master's duration from the manifest, or
// nil before ingest has written one.
func masterDuration(jobDir string) *int64 {
	assets, err := artifacts.LoadMediaAssets(jobDir)
	if err != nil {
		return nil
	}
	for _, asset := range assets {
		if asset.Kind == artifacts.KindAudioMaster {
			duration := asset.DurationMS
			return &duration
		}
	}
	return nil
}

// directoryTimes derives created/updated timestamps from entry mtimes: the
// oldest entry is the original upload, the newest write is the last update.
func directoryTimes(jobDir string) (created, updated time.Time) {
	info, err := os.Stat(jobDir)
	if err != nil {
		now := time.Now().UTC()
		return now, now
	}
	created = info.ModTime().UTC()
	updated = created

	entries, err := os.ReadDir(jobDir)
	if err != nil {
		return created, updated
	}
	for _, entry := range entries {
		entryInfo, err := entry.Info()
		if err != nil {
			continue
		}
		mod := entryInfo.ModTime().UTC()
		if mod.Before(created) {
			created = mod
		}
		if mod.After(updated) {
			updated = mod
		}
	}
	return created, updated
}

// SanitizeJobID rejects IDs that could escape the upload root.
func SanitizeJobID(jobID string) (string, error) {
	trimmed := strings.TrimSpace(jobID)
	if trimmed == "" || trimmed != filepath.Base(trimmed) ||
		strings.ContainsAny(trimmed, `/\`) || trimmed == "." || trimmed == ".." {
		return "", services.Wrap(services.ErrValidation, "jobstate", "sanitize",
			"invalid job id "+jobID, nil)
	}
	return trimmed, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
