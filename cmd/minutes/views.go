package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"minutes/internal/jobstate"
	"minutes/internal/language"
)

var jobListHeaders = []string{"JOB ID", "STATUS", "STAGE", "PROGRESS", "DURATION", "LANGUAGES", "UPDATED (UTC)"}

var jobListAlignments = []columnAlignment{
	alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft,
}

func buildJobRows(jobs []jobstate.Summary) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]jobstate.Summary, len(jobs))
	copy(sorted, jobs)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].UpdatedAt.Equal(sorted[j].UpdatedAt) {
			return sorted[i].JobID < sorted[j].JobID
		}
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		rows = append(rows, []string{
			job.JobID,
			formatStatusLabel(string(job.Status)),
			formatStage(job.StageKey, job.StageIndex, job.StageCount),
			formatProgress(job.Progress),
			formatDurationMS(job.DurationMS),
			formatLanguages(job.Languages),
			formatDisplayTime(job.UpdatedAt),
		})
	}
	return rows
}

func buildJobStatusLines(detail jobstate.Detail, colorize bool) []string {
	lines := make([]string, 0, 10)
	lines = append(lines, renderStatusLine("Status", jobStatusKind(detail.Status), formatStatusLabel(string(detail.Status)), colorize))
	lines = append(lines, renderStatusLine("Stage", statusInfo, formatStage(detail.StageKey, detail.StageIndex, detail.StageCount), colorize))
	lines = append(lines, renderStatusLine("Progress", statusInfo, formatProgress(detail.Progress), colorize))
	lines = append(lines, renderStatusLine("Duration", statusInfo, formatDurationMS(detail.DurationMS), colorize))
	lines = append(lines, renderStatusLine("Languages", statusInfo, formatLanguages(detail.Languages), colorize))
	lines = append(lines, renderStatusLine("Summary items", statusInfo, strconv.Itoa(detail.SummaryCount), colorize))
	lines = append(lines, renderStatusLine("Action items", statusInfo, strconv.Itoa(detail.ActionItemCount), colorize))
	lines = append(lines, renderStatusLine("Deletable", statusInfo, yesNo(detail.CanDelete), colorize))
	if metrics := detail.QualityMetrics; metrics != nil {
		quality := fmt.Sprintf("coverage %.0f%%, referenced %.0f%%, avg %.0f words",
			metrics.CoverageRatio*100, metrics.ReferencedSegmentsRatio*100, metrics.AverageSummaryWordCount)
		lines = append(lines, renderStatusLine("Summary quality", statusInfo, quality, colorize))
	}
	if failure := detail.Failure; failure != nil {
		message := failure.Message
		if failure.Stage != "" {
			message = fmt.Sprintf("%s: %s", failure.Stage, failure.Message)
		}
		lines = append(lines, renderStatusLine("Failure", statusError, message, colorize))
	}
	return lines
}

func jobStatusKind(status jobstate.Status) statusKind {
	switch status {
	case jobstate.StatusCompleted:
		return statusOK
	case jobstate.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}

func countJobStatuses(jobs []jobstate.Summary) map[jobstate.Status]int {
	counts := make(map[jobstate.Status]int, 4)
	for _, job := range jobs {
		counts[job.Status]++
	}
	return counts
}

func formatJobCounts(counts map[jobstate.Status]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return "none"
	}
	order := []jobstate.Status{
		jobstate.StatusPending,
		jobstate.StatusProcessing,
		jobstate.StatusCompleted,
		jobstate.StatusFailed,
	}
	parts := make([]string, 0, len(order))
	for _, status := range order {
		if counts[status] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[status], status))
		}
	}
	return fmt.Sprintf("%d total (%s)", total, strings.Join(parts, ", "))
}

func formatStage(key string, index, count int) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "-"
	}
	return fmt.Sprintf("%s (%d/%d)", key, index, count)
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatProgress(fraction float64) string {
	percent := int(math.Round(fraction * 100))
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return fmt.Sprintf("%d%%", percent)
}

func formatDurationMS(ms *int64) string {
	if ms == nil {
		return "-"
	}
	duration := time.Duration(*ms) * time.Millisecond
	return duration.Round(time.Second).String()
}

func formatLanguages(codes []string) string {
	display := language.DisplayList(codes)
	if display == "" {
		return "-"
	}
	return display
}

func formatDisplayTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02 15:04")
}
