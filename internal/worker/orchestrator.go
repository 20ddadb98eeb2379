package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"minutes/internal/artifacts"
	"minutes/internal/config"
	"minutes/internal/logging"
	"minutes/internal/media"
	"minutes/internal/metrics"
	"minutes/internal/notify"
	"minutes/internal/queue"
	"minutes/internal/services"
	"minutes/internal/services/summarizer"
	"minutes/internal/services/transcriber"
	"minutes/internal/transcript"
)

// Enqueuer schedules follow-on stage tasks. *queue.Broker satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// MediaProcessor prepares an uploaded recording for transcription.
type MediaProcessor interface {
	Process(ctx context.Context, jobID, sourcePath string) (*media.Result, error)
}

// Transcriber converts prepared audio chunks into per-chunk results.
type Transcriber interface {
	TranscribeChunks(ctx context.Context, chunks []artifacts.MediaAsset, language, prompt string) ([]transcript.ChunkResult, error)
}

// Summarizer produces the summary bundle for an assembled transcript.
type Summarizer interface {
	Summarize(ctx context.Context, jobID string, segments []artifacts.TranscriptSegment, languageHint string) (*summarizer.Bundle, error)
}

// Orchestrator routes queue tasks to their stage implementations. It
// satisfies queue.Handler, and HandleFailure satisfies queue.FailureHook.
type Orchestrator struct {
	uploadRoot  string
	language    string
	queue       Enqueuer
	media       MediaProcessor
	transcriber Transcriber
	summarizer  Summarizer
	notifier    notify.Service
	logger      *slog.Logger
}

// Option overrides a collaborator, primarily for tests.
type Option func(*Orchestrator)

// WithMediaProcessor injects a custom ingest pipeline.
func WithMediaProcessor(p MediaProcessor) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.media = p
		}
	}
}

// WithTranscriber injects a custom transcription client.
func WithTranscriber(t Transcriber) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.transcriber = t
		}
	}
}

// WithSummarizer injects a custom summarization client.
func WithSummarizer(s Summarizer) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.summarizer = s
		}
	}
}

// New builds the production orchestrator from configuration. Collaborators
// are constructed eagerly so a missing API key or an invalid media setting
// surfaces at startup rather than on the first task.
func New(cfg *config.Config, broker Enqueuer, notifier notify.Service, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "worker", "configure", "config must not be nil", nil)
	}
	if broker == nil {
		return nil, services.Wrap(services.ErrConfiguration, "worker", "configure", "queue broker must not be nil", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewService(cfg)
	}

	o := &Orchestrator{
		uploadRoot: cfg.Paths.UploadDir,
		language:   strings.TrimSpace(cfg.Transcription.Language),
		queue:      broker,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.media == nil {
		pipeline, err := media.NewPipeline(media.Options{
			FFmpegPath:   cfg.Media.FFmpegPath,
			FFprobePath:  cfg.Media.FFprobePath,
			ChunkSeconds: cfg.Media.ChunkSeconds,
			SampleRate:   cfg.Media.SampleRate,
			Channels:     cfg.Media.Channels,
		}, logger)
		if err != nil {
			return nil, err
		}
		o.media = pipeline
	}
	if o.transcriber == nil {
		api := cfg.TranscriptionAPI()
		client, err := transcriber.New(transcriber.Config{
			APIKey:            api.APIKey,
			BaseURL:           api.BaseURL,
			Model:             api.Model,
			UserAgent:         api.UserAgent,
			RequestTimeout:    time.Duration(api.TimeoutSeconds) * time.Second,
			MaxAttempts:       cfg.Transcription.MaxAttempts,
			RetryBackoff:      secondsToDuration(cfg.Transcription.RetryBackoffSeconds),
			RetryBackoffCap:   secondsToDuration(cfg.Transcription.RetryBackoffCapSeconds),
			RequestsPerMinute: cfg.Transcription.RequestsPerMinute,
			MaxConcurrent:     cfg.Transcription.MaxConcurrentRequests,
		}, logger)
		if err != nil {
			return nil, err
		}
		o.transcriber = client
	}
	if o.summarizer == nil {
		api := cfg.SummarizationAPI()
		client, err := summarizer.New(summarizer.Config{
			APIKey:            api.APIKey,
			BaseURL:           api.BaseURL,
			Model:             api.Model,
			UserAgent:         api.UserAgent,
			Temperature:       cfg.Summarization.Temperature,
			MaxOutputTokens:   cfg.Summarization.MaxOutputTokens,
			RequestTimeout:    time.Duration(api.TimeoutSeconds) * time.Second,
			MaxAttempts:       cfg.Summarization.MaxAttempts,
			RetryBackoff:      secondsToDuration(cfg.Summarization.RetryBackoffSeconds),
			RetryBackoffCap:   secondsToDuration(cfg.Summarization.RetryBackoffCapSeconds),
			RequestsPerMinute: cfg.Summarization.RequestsPerMinute,
			Limits: summarizer.PromptLimits{
				CharBudget:        cfg.Summarization.PromptCharBudget,
				SnippetCharLimit:  cfg.Summarization.SnippetCharLimit,
				SectionSpanMS:     cfg.Summarization.SectionSpanMS,
				MinutesPerSection: cfg.Summarization.MinutesPerSection,
				MinSections:       cfg.Summarization.MinSections,
				MaxSections:       cfg.Summarization.MaxSections,
			},
		}, logger)
		if err != nil {
			return nil, err
		}
		o.summarizer = client
	}
	return o, nil
}

// Handle runs the stage matching the task name and records its outcome.
func (o *Orchestrator) Handle(ctx context.Context, task queue.Task) error {
	stageStart := time.Now()
	var err error
	switch task.Name {
	case queue.TaskIngest:
		err = o.runIngest(ctx, task)
	case queue.TaskTranscribe:
		err = o.runTranscribe(ctx, task)
	case queue.TaskSummarize:
		err = o.runSummarize(ctx, task)
	default:
		err = services.Wrap(services.ErrValidation, "worker", "dispatch",
			fmt.Sprintf("no stage handles task name %q", task.Name), nil)
	}
	metrics.RecordStage(string(task.Name), metrics.StatusFor(err), time.Since(stageStart).Seconds())
	return err
}

// jobDir resolves the directory a task's artifacts live in. Ingest tasks
// carry a source path instead of a directory; anything else falls back to
// the canonical <upload_root>/<job_id> location.
func (o *Orchestrator) jobDir(task queue.Task) string {
	if dir := strings.TrimSpace(task.JobDirectory); dir != "" {
		return dir
	}
	if source := strings.TrimSpace(task.SourcePath); source != "" {
		return filepath.Dir(source)
	}
	return filepath.Join(o.uploadRoot, strings.TrimSpace(task.JobID))
}

// markFailed writes the stage failure marker and hands the original error
// back to the pool. Marker write problems are logged rather than returned so
// the stage error always wins.
func (o *Orchestrator) markFailed(ctx context.Context, jobDir string, task queue.Task, stage string, err error) error {
	details := map[string]any{
		"task_id": task.ID,
		"task":    string(task.Name),
	}
	if markErr := artifacts.MarkJobFailed(jobDir, stage, err.Error(), details); markErr != nil {
		o.logger.ErrorContext(ctx, "failed to write failure marker",
			logging.String(logging.FieldJobID, task.JobID),
			logging.String(logging.FieldStage, stage),
			logging.Error(markErr))
	}
	return err
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
