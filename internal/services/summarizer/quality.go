package summarizer

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"minutes/internal/artifacts"
)

// evaluateQuality computes the locally derived quality signals for one run.
// Coverage is the unioned summary span duration over the transcript duration;
// a segment counts as referenced when any summary span strictly overlaps it.
func evaluateQuality(segments []artifacts.TranscriptSegment, summaryItems []artifacts.SummaryItem, actionItems []artifacts.ActionItem, metadata map[string]any) artifacts.SummaryQualityMetrics {
	metrics := artifacts.SummaryQualityMetrics{
		ActionItemCount: len(actionItems),
		LLMConfidence:   extractConfidence(metadata),
	}
	if len(segments) == 0 {
		return metrics
	}

	bounds := segmentBounds(segments)
	totalDuration := bounds.maxEnd - bounds.minStart
	if totalDuration < 1 {
		totalDuration = 1
	}

	var ranges [][2]int64
	referenced := make(map[int]struct{})
	totalWords := 0
	for _, item := range summaryItems {
		start := max(item.SegmentStartMS, bounds.minStart)
		end := min(item.SegmentEndMS, bounds.maxEnd)
		if end > start {
			ranges = append(ranges, [2]int64{start, end})
		}
		for _, segment := range segments {
			if max(segment.StartMS, item.SegmentStartMS) < min(segment.EndMS, item.SegmentEndMS) {
				referenced[segment.Order] = struct{}{}
			}
		}
		totalWords += len(strings.Fields(item.SummaryText))
	}

	coverage := float64(mergedSpan(ranges)) / float64(totalDuration)
	metrics.CoverageRatio = round3(math.Min(1, math.Max(0, coverage)))
	metrics.ReferencedSegmentsRatio = round3(float64(len(referenced)) / float64(len(segments)))
	if len(summaryItems) > 0 {
		metrics.AverageSummaryWordCount = round2(float64(totalWords) / float64(len(summaryItems)))
	}
	return metrics
}

// mergedSpan unions the ranges and returns the total covered duration.
func mergedSpan(ranges [][2]int64) int64 {
	if len(ranges) == 0 {
		return 0
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i][0] != ranges[j][0] {
			return ranges[i][0] < ranges[j][0]
		}
		return ranges[i][1] < ranges[j][1]
	})

	var covered int64
	currentStart, currentEnd := ranges[0][0], ranges[0][1]
	for _, r := range ranges[1:] {
		if r[0] > currentEnd {
			covered += currentEnd - currentStart
			currentStart, currentEnd = r[0], r[1]
			continue
		}
		if r[1] > currentEnd {
			currentEnd = r[1]
		}
	}
	return covered + (currentEnd - currentStart)
}

// extractConfidence pulls the model's self-reported confidence out of the
// response metadata: quality.confidence accepts numbers and numeric strings,
// the top-level confidence key numbers only.
func extractConfidence(metadata map[string]any) *float64 {
	if quality, ok := metadata["quality"].(map[string]any); ok {
		switch v := quality["confidence"].(type) {
		case float64:
			return &v
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &parsed
			}
			return nil
		}
	}
	if v, ok := metadata["confidence"].(float64); ok {
		return &v
	}
	return nil
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
