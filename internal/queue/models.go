package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskName identifies one of the pipeline stage tasks carried on the queue.
type TaskName string

const (
	TaskIngest     TaskName = "ingest"
	TaskTranscribe TaskName = "transcribe"
	TaskSummarize  TaskName = "summarize"
)

var allTaskNames = []TaskName{
	TaskIngest,
	TaskTranscribe,
	TaskSummarize,
}

var taskNameSet = func() map[TaskName]struct{} {
	set := make(map[TaskName]struct{}, len(allTaskNames))
	for _, name := range allTaskNames {
		set[name] = struct{}{}
	}
	return set
}()

// AllTaskNames returns the ordered list of known task names.
func AllTaskNames() []TaskName {
	cp := make([]TaskName, len(allTaskNames))
	copy(cp, allTaskNames)
	return cp
}

// ParseTaskName converts a string into a known TaskName.
func ParseTaskName(value string) (TaskName, bool) {
	normalized := TaskName(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := taskNameSet[normalized]
	return normalized, ok
}

// Task is one unit of work on the queue: a task name plus the keyword
// arguments the stage handler needs. Optional fields are omitted from the
// wire payload when empty.
type Task struct {
	ID           string    `json:"id"`
	Name         TaskName  `json:"name"`
	JobID        string    `json:"job_id"`
	SourcePath   string    `json:"source_path,omitempty"`
	JobDirectory string    `json:"job_directory,omitempty"`
	Language     string    `json:"language,omitempty"`
	Prompt       string    `json:"prompt,omitempty"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// NewIngestTask builds the first-stage task for a freshly uploaded recording.
func NewIngestTask(jobID, sourcePath string) Task {
	return Task{
		ID:         uuid.NewString(),
		Name:       TaskIngest,
		JobID:      jobID,
		SourcePath: sourcePath,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewTranscribeTask builds the transcription task. Language and prompt are
// optional pass-throughs to the speech-to-text request.
func NewTranscribeTask(jobID, jobDirectory, language, prompt string) Task {
	return Task{
		ID:           uuid.NewString(),
		Name:         TaskTranscribe,
		JobID:        jobID,
		JobDirectory: jobDirectory,
		Language:     language,
		Prompt:       prompt,
		EnqueuedAt:   time.Now().UTC(),
	}
}

// NewSummarizeTask builds the final-stage summary task.
func NewSummarizeTask(jobID, jobDirectory string) Task {
	return Task{
		ID:           uuid.NewString(),
		Name:         TaskSummarize,
		JobID:        jobID,
		JobDirectory: jobDirectory,
		EnqueuedAt:   time.Now().UTC(),
	}
}

// Depth reports the pending and in-flight list lengths for health views.
type Depth struct {
	Pending    int64
	Processing int64
}
