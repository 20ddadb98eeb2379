package summarizer

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"minutes/internal/artifacts"
	"minutes/internal/logging"
)

// Key names models use for section and action-item timestamps, in preference
// order. A key whose value cannot be coerced does not stop the scan.
var (
	startKeys = []string{"start_ms", "start", "segment_start_ms", "segment_start"}
	endKeys   = []string{"end_ms", "end", "segment_end_ms", "segment_end"}
)

// timeBounds is the transcript range every summary timestamp is clamped into.
type timeBounds struct {
	minStart int64
	maxEnd   int64
}

func segmentBounds(segments []artifacts.TranscriptSegment) timeBounds {
	bounds := timeBounds{minStart: segments[0].StartMS, maxEnd: segments[0].EndMS}
	for _, segment := range segments[1:] {
		if segment.StartMS < bounds.minStart {
			bounds.minStart = segment.StartMS
		}
		if segment.EndMS > bounds.maxEnd {
			bounds.maxEnd = segment.EndMS
		}
	}
	return bounds
}

func (b timeBounds) clamp(value int64) (int64, bool) {
	clamped := min(max(value, b.minStart), b.maxEnd)
	return clamped, clamped != value
}

// parseSummarySections extracts the ordered summary items. Entries without
// usable text or timestamps are skipped; timestamps are clamped into the
// transcript range and sections whose span collapses under clamping are
// dropped.
func (c *Client) parseSummarySections(jobID string, value any, bounds timeBounds) []artifacts.SummaryItem {
	entries, ok := value.([]any)
	if !ok {
		return nil
	}
	items := make([]artifacts.SummaryItem, 0, len(entries))
	for index, entry := range entries {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		summaryText := stringField(raw, "summary")
		if strings.TrimSpace(summaryText) == "" {
			summaryText = stringField(raw, "text")
		}
		if strings.TrimSpace(summaryText) == "" {
			continue
		}
		startMS, ok := timeValue(raw, startKeys)
		if !ok {
			continue
		}
		endMS, ok := timeValue(raw, endKeys)
		if !ok {
			continue
		}

		clampedStart, startMoved := bounds.clamp(startMS)
		clampedEnd, endMoved := bounds.clamp(endMS)
		if startMoved || endMoved {
			c.logger.Warn("summary section clamped to transcript range",
				logging.String(logging.FieldJobID, jobID),
				logging.Int("section_index", index),
				logging.Int64("start_ms", startMS),
				logging.Int64("end_ms", endMS))
		}
		if clampedEnd <= clampedStart {
			c.logger.Warn("summary section dropped: empty span",
				logging.String(logging.FieldJobID, jobID),
				logging.Int("section_index", index))
			continue
		}

		items = append(items, artifacts.SummaryItem{
			SummaryID:      uuid.NewString(),
			JobID:          jobID,
			Order:          len(items),
			SegmentStartMS: clampedStart,
			SegmentEndMS:   clampedEnd,
			SummaryText:    summaryText,
			Heading:        optionalString(raw["title"]),
			Priority:       optionalString(raw["priority"]),
			Highlights:     normalizeHighlights(raw["highlights"]),
		})
	}
	return items
}

// parseActionItems extracts the follow-ups. Orders continue after the summary
// items so the combined artifact set stays densely ordered. Timestamps are
// optional; present ones are clamped, and an item is dropped only when both
// bounds are present and the span collapses.
func (c *Client) parseActionItems(jobID string, value any, startingOrder int, bounds timeBounds) []artifacts.ActionItem {
	entries, ok := value.([]any)
	if !ok {
		return nil
	}
	items := make([]artifacts.ActionItem, 0, len(entries))
	for index, entry := range entries {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		description := stringField(raw, "description")
		if strings.TrimSpace(description) == "" {
			description = stringField(raw, "text")
		}
		if strings.TrimSpace(description) == "" {
			continue
		}

		var startMS, endMS *int64
		moved := false
		if ms, ok := timeValue(raw, startKeys); ok {
			clamped, changed := bounds.clamp(ms)
			startMS = &clamped
			moved = moved || changed
		}
		if ms, ok := timeValue(raw, endKeys); ok {
			clamped, changed := bounds.clamp(ms)
			endMS = &clamped
			moved = moved || changed
		}
		if moved {
			c.logger.Warn("action item clamped to transcript range",
				logging.String(logging.FieldJobID, jobID),
				logging.Int("action_index", index))
		}
		if startMS != nil && endMS != nil && *endMS <= *startMS {
			c.logger.Warn("action item dropped: empty span",
				logging.String(logging.FieldJobID, jobID),
				logging.Int("action_index", index))
			continue
		}

		items = append(items, artifacts.ActionItem{
			ActionID:       uuid.NewString(),
			JobID:          jobID,
			Order:          startingOrder + len(items),
			Description:    description,
			Owner:          optionalString(raw["owner"]),
			DueDate:        optionalString(raw["due_date"]),
			SegmentStartMS: startMS,
			SegmentEndMS:   endMS,
			Priority:       optionalString(raw["priority"]),
		})
	}
	return items
}

func stringField(raw map[string]any, key string) string {
	text, _ := raw[key].(string)
	return text
}

// timeValue scans the variant keys in order and returns the first value that
// coerces to milliseconds.
func timeValue(entry map[string]any, keys []string) (int64, bool) {
	for _, key := range keys {
		value, ok := entry[key]
		if !ok {
			continue
		}
		if ms, ok := coerceMilliseconds(value); ok {
			return ms, true
		}
	}
	return 0, false
}

// coerceMilliseconds accepts integers, floats, and strings with an optional
// "ms" or "s" suffix ("90s" means 90000). Fractions floor toward negative
// infinity.
func coerceMilliseconds(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(math.Floor(v)), true
	case string:
		text := strings.ToLower(strings.TrimSpace(v))
		if text == "" {
			return 0, false
		}
		multiplier := 1.0
		switch {
		case strings.HasSuffix(text, "ms"):
			text = strings.TrimSpace(strings.TrimSuffix(text, "ms"))
		case strings.HasSuffix(text, "s"):
			text = strings.TrimSpace(strings.TrimSuffix(text, "s"))
			multiplier = 1000
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, false
		}
		return int64(math.Floor(parsed * multiplier)), true
	default:
		return 0, false
	}
}

// optionalString renders the loosely typed optional fields (title, owner,
// due_date, priority). Absent, empty, and zero values mean "not provided".
func optionalString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// normalizeHighlights keeps string and numeric entries, dropping everything
// else. Returns nil when nothing survives so the field is omitted.
func normalizeHighlights(value any) []string {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	highlights := make([]string, 0, len(list))
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
			highlights = append(highlights, v)
		case float64:
			highlights = append(highlights, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	if len(highlights) == 0 {
		return nil
	}
	return highlights
}
