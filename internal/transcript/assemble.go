package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"minutes/internal/artifacts"
	"minutes/internal/logging"
	"minutes/internal/services"
)

// ChunkResult carries the transcription outcome for one audio chunk. StartMS
// and EndMS locate the chunk on the master timeline; Response holds the
// decoded model payload exactly as received.
type ChunkResult struct {
	AssetID  string
	StartMS  int64
	EndMS    int64
	Text     string
	Language string
	Response map[string]any
}

// Keys the transcription service is known to emit per segment. Anything
// else is preserved verbatim in the segment's Extra map.
var knownSegmentKeys = map[string]struct{}{
	"id":                {},
	"text":              {},
	"start":             {},
	"end":               {},
	"temperature":       {},
	"avg_logprob":       {},
	"compression_ratio": {},
	"no_speech_prob":    {},
	"speaker":           {},
	"speaker_label":     {},
	"language":          {},
}

// Assemble merges chunk responses into ordered transcript segments. Chunks
// are processed in (start_ms, asset_id) order and every emitted segment is
// clamped into its chunk's window. A chunk whose response yields no usable
// segments fails the whole assembly; partial transcripts would mask upstream
// transcription errors.
func Assemble(jobID string, results []ChunkResult, logger *slog.Logger) ([]artifacts.TranscriptSegment, error) {
	log := logging.NewComponentLogger(logger, "transcript")
	if len(results) == 0 {
		return nil, nil
	}

	ordered := make([]ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartMS != ordered[j].StartMS {
			return ordered[i].StartMS < ordered[j].StartMS
		}
		return ordered[i].AssetID < ordered[j].AssetID
	})

	merged := make([]artifacts.TranscriptSegment, 0, len(ordered))
	globalLanguage := ""

	for _, chunk := range ordered {
		if globalLanguage == "" && chunk.Language != "" {
			globalLanguage = chunk.Language
		}

		kept := 0
		for _, candidate := range candidateSegments(jobID, chunk, log) {
			text := strings.TrimSpace(candidate.text)
			if text == "" {
				continue
			}

			startMS := max(chunk.StartMS, candidate.startMS)
			endMS := min(chunk.EndMS, candidate.endMS)
			if endMS <= startMS {
				continue
			}

			language := candidate.language
			if language == "" {
				language = chunk.Language
			}
			if language == "" {
				language = globalLanguage
			}

			merged = append(merged, artifacts.TranscriptSegment{
				SegmentID:     uuid.NewString(),
				JobID:         jobID,
				Order:         len(merged),
				StartMS:       startMS,
				EndMS:         endMS,
				Text:          text,
				Language:      language,
				SpeakerLabel:  candidate.speakerLabel,
				SourceAssetID: chunk.AssetID,
				Extra:         candidate.extra,
			})
			kept++
		}

		if kept == 0 {
			return nil, services.Wrap(services.ErrMalformedResponse, "transcript", "assemble",
				fmt.Sprintf("chunk %s (%d-%dms) yielded no usable segments", chunk.AssetID, chunk.StartMS, chunk.EndMS), nil)
		}
	}

	if globalLanguage == "" {
		for _, segment := range merged {
			if segment.Language != "" {
				globalLanguage = segment.Language
				break
			}
		}
	}
	if globalLanguage != "" {
		for i := range merged {
			if merged[i].Language == "" {
				merged[i].Language = globalLanguage
			}
		}
	}

	return merged, nil
}

type candidate struct {
	text         string
	startMS      int64
	endMS        int64
	language     string
	speakerLabel string
	extra        map[string]any
}

func candidateSegments(jobID string, chunk ChunkResult, log *slog.Logger) []candidate {
	list, ok := chunk.Response["segments"].([]any)
	if !ok {
		return nil
	}

	candidates := make([]candidate, 0, len(list))
	for index, entry := range list {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		text, ok := raw["text"].(string)
		if !ok {
			continue
		}

		startSeconds, startOK := parseSeconds(raw["start"])
		endSeconds, endOK := parseSeconds(raw["end"])
		if !startOK || !endOK {
			log.Warn("transcription segment missing timestamps",
				logging.String(logging.FieldJobID, jobID),
				logging.String(logging.FieldAssetID, chunk.AssetID),
				logging.Int("segment_index", index))
			continue
		}

		language, _ := raw["language"].(string)

		candidates = append(candidates, candidate{
			text:         text,
			startMS:      chunk.StartMS + secondsToMilliseconds(startSeconds),
			endMS:        chunk.StartMS + secondsToMilliseconds(endSeconds),
			language:     language,
			speakerLabel: speakerLabel(raw),
			extra:        segmentExtra(raw),
		})
	}
	return candidates
}

func speakerLabel(raw map[string]any) string {
	if label, ok := raw["speaker_label"].(string); ok {
		return label
	}
	if label, ok := raw["speaker"].(string); ok {
		return label
	}
	return ""
}

func segmentExtra(raw map[string]any) map[string]any {
	var extra map[string]any
	for key, value := range raw {
		if _, known := knownSegmentKeys[key]; known {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = value
	}
	return extra
}

// parseSeconds converts the loose timestamp representations seen in model
// responses (JSON numbers, numeric strings) to seconds.
func parseSeconds(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func secondsToMilliseconds(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}
