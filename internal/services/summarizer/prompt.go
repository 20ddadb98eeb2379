package summarizer

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"minutes/internal/artifacts"
	"minutes/internal/services"
)

const (
	defaultPromptCharBudget  = 20000
	defaultSnippetCharLimit  = 1600
	defaultSectionSpanMS     = 300000
	defaultMinutesPerSection = 3
	defaultMinSections       = 6
	defaultMaxSections       = 32
)

// PromptLimits bounds the prompt size and steers the requested section count.
// Zero fields fall back to the package defaults.
type PromptLimits struct {
	CharBudget        int
	SnippetCharLimit  int
	SectionSpanMS     int64
	MinutesPerSection int
	MinSections       int
	MaxSections       int
}

func (l PromptLimits) withDefaults() PromptLimits {
	if l.CharBudget <= 0 {
		l.CharBudget = defaultPromptCharBudget
	}
	if l.SnippetCharLimit <= 0 {
		l.SnippetCharLimit = defaultSnippetCharLimit
	}
	if l.SectionSpanMS <= 0 {
		l.SectionSpanMS = defaultSectionSpanMS
	}
	if l.MinutesPerSection <= 0 {
		l.MinutesPerSection = defaultMinutesPerSection
	}
	if l.MinSections <= 0 {
		l.MinSections = defaultMinSections
	}
	if l.MaxSections <= 0 {
		l.MaxSections = defaultMaxSections
	}
	return l
}

// BuildPrompt renders the user prompt for one summarization run. Snippets are
// included in segment order until the character budget would be exceeded; the
// meeting duration and the derived section target always reflect every
// segment with text, including ones the budget cut off.
func BuildPrompt(jobID string, segments []artifacts.TranscriptSegment, languageHint string, limits PromptLimits) (string, error) {
	limits = limits.withDefaults()

	var (
		lines      []string
		total      int
		firstStart int64
		lastEnd    int64
		withText   int
	)
	for _, segment := range segments {
		if strings.TrimSpace(segment.Text) == "" {
			continue
		}
		if withText == 0 || segment.StartMS < firstStart {
			firstStart = segment.StartMS
		}
		if withText == 0 || segment.EndMS > lastEnd {
			lastEnd = segment.EndMS
		}
		withText++

		formatted := formatSnippet(segment, limits.SnippetCharLimit)
		projected := total + utf8.RuneCountInString(formatted) + 1
		if projected > limits.CharBudget && len(lines) > 0 {
			break
		}
		lines = append(lines, formatted)
		total = projected
	}
	if withText == 0 {
		return "", services.Wrap(services.ErrValidation, "summarizer", "build prompt",
			"transcript contains no segments with text", nil)
	}

	durationMS := lastEnd - firstStart
	if durationMS < 1 {
		durationMS = 1
	}
	minutes := float64(durationMS) / 60000
	target := sectionTarget(minutes, limits)

	var b strings.Builder
	b.WriteString("You are an expert meeting summarization assistant. ")
	b.WriteString("Given transcript snippets with millisecond timestamps, provide a structured JSON response that contains two arrays: `summary_sections` and `action_items`.")
	b.WriteString(" Each summary section must include `summary`, `start_ms`, `end_ms`, and may include optional fields `title`, `highlights` (1-3 short bullet strings), and `priority`.")
	b.WriteString(" Each action item must include `description`, and may include `owner`, `due_date`, `start_ms`, `end_ms`, and `priority`.")
	b.WriteString(" Start times and end times should align with the transcript context you are summarising.")
	fmt.Fprintf(&b, " This meeting lasts approximately %.1f minutes. Produce around %d summary sections, allowing a deviation of up to two sections if needed.", minutes, target)
	fmt.Fprintf(&b, " Each summary section must focus on a single discussion thread and the span between start_ms and end_ms must not exceed %d milliseconds.", limits.SectionSpanMS)
	b.WriteString(" Include concrete facts, decisions, blockers, and owners.")
	b.WriteString(" Respond strictly with valid JSON. Do not include any additional commentary.")
	if hint := strings.TrimSpace(languageHint); hint != "" {
		fmt.Fprintf(&b, " The source language is predominantly %s.", hint)
		fmt.Fprintf(&b, " Keep every textual field (summaries, titles, highlights, action items, owners, due dates) in %s without translating.", hint)
	} else {
		b.WriteString(" Maintain the language used in the transcript snippets for every textual field.")
	}
	fmt.Fprintf(&b, "\n\nJob identifier: %s\nTranscript snippets (timestamps in milliseconds):\n%s", jobID, strings.Join(lines, "\n"))
	return b.String(), nil
}

func sectionTarget(minutes float64, limits PromptLimits) int {
	target := int(math.Round(minutes / float64(limits.MinutesPerSection)))
	if target < limits.MinSections {
		target = limits.MinSections
	}
	if target > limits.MaxSections {
		target = limits.MaxSections
	}
	return target
}

func formatSnippet(segment artifacts.TranscriptSegment, snippetLimit int) string {
	text := strings.ReplaceAll(strings.TrimSpace(segment.Text), "\n", " ")
	if runes := []rune(text); len(runes) > snippetLimit {
		text = strings.TrimRight(string(runes[:snippetLimit]), " \t\r\n") + "..."
	}
	return fmt.Sprintf("[%d-%d] %s", segment.StartMS, segment.EndMS, text)
}
