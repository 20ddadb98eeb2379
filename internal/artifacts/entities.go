package artifacts

import "time"

// Media asset kinds.
const (
	KindAudioMaster = "audio_master"
	KindAudioChunk  = "audio_chunk"
)

// Pipeline stage names recorded in failure markers.
const (
	StageUpload        = "upload"
	StageChunking      = "chunking"
	StageTranscription = "transcription"
	StageSummary       = "summary"
)

// MediaAsset describes one stored media file belonging to a job. The master
// carries order -1; chunks are numbered 0..N-1 and point at the master via
// ParentAssetID.
type MediaAsset struct {
	AssetID       string         `json:"asset_id"`
	JobID         string         `json:"job_id"`
	Kind          string         `json:"kind"`
	Path          string         `json:"path"`
	Order         int            `json:"order"`
	DurationMS    int64          `json:"duration_ms"`
	StartMS       int64          `json:"start_ms"`
	EndMS         int64          `json:"end_ms"`
	SampleRate    int            `json:"sample_rate,omitempty"`
	Channels      int            `json:"channels,omitempty"`
	BitDepth      int            `json:"bit_depth,omitempty"`
	ParentAssetID string         `json:"parent_asset_id,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// TranscriptSegment is one ordered span of recognised speech. StartMS and
// EndMS are absolute offsets from the start of the audio master.
type TranscriptSegment struct {
	SegmentID     string         `json:"segment_id"`
	JobID         string         `json:"job_id"`
	Order         int            `json:"order"`
	StartMS       int64          `json:"start_ms"`
	EndMS         int64          `json:"end_ms"`
	Text          string         `json:"text"`
	Language      string         `json:"language,omitempty"`
	SpeakerLabel  string         `json:"speaker_label,omitempty"`
	SourceAssetID string         `json:"source_asset_id,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// SummaryItem is one section of the generated meeting summary. Segment
// bounds are clamped to the transcript range before persistence.
type SummaryItem struct {
	SummaryID      string   `json:"summary_id"`
	JobID          string   `json:"job_id"`
	Order          int      `json:"order"`
	SegmentStartMS int64    `json:"segment_start_ms"`
	SegmentEndMS   int64    `json:"segment_end_ms"`
	SummaryText    string   `json:"summary_text"`
	Heading        string   `json:"heading,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	Highlights     []string `json:"highlights,omitempty"`
}

// ActionItem is one follow-up extracted from the meeting. Segment bounds are
// optional; pointers distinguish "absent" from zero.
type ActionItem struct {
	ActionID       string `json:"action_id"`
	JobID          string `json:"job_id"`
	Order          int    `json:"order"`
	Description    string `json:"description"`
	Owner          string `json:"owner,omitempty"`
	DueDate        string `json:"due_date,omitempty"`
	SegmentStartMS *int64 `json:"segment_start_ms,omitempty"`
	SegmentEndMS   *int64 `json:"segment_end_ms,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

// SummaryQualityMetrics captures computed quality signals for one summary run.
type SummaryQualityMetrics struct {
	CoverageRatio           float64  `json:"coverage_ratio"`
	ReferencedSegmentsRatio float64  `json:"referenced_segments_ratio"`
	AverageSummaryWordCount float64  `json:"average_summary_word_count"`
	ActionItemCount         int      `json:"action_item_count"`
	LLMConfidence           *float64 `json:"llm_confidence,omitempty"`
}

// JobFailureRecord is the single on-disk witness of a failed stage.
type JobFailureRecord struct {
	Stage      string         `json:"stage"`
	Message    string         `json:"message"`
	OccurredAt time.Time      `json:"occurred_at"`
	Details    map[string]any `json:"details"`
}
