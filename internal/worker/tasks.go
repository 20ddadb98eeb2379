package worker

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"minutes/internal/artifacts"
	"minutes/internal/logging"
	"minutes/internal/queue"
	"minutes/internal/services"
	"minutes/internal/transcript"
)

// runIngest turns the uploaded recording into the audio master plus chunk
// manifest, then hands the job to transcription. The hand-off happens only
// after the manifest is on disk; an enqueue failure is the chunking stage's
// to own because the chunks themselves are already durable.
func (o *Orchestrator) runIngest(ctx context.Context, task queue.Task) error {
	jobDir := o.jobDir(task)
	if err := artifacts.ClearJobFailure(jobDir); err != nil {
		return err
	}

	sourcePath := strings.TrimSpace(task.SourcePath)
	if sourcePath == "" {
		return o.markFailed(ctx, jobDir, task, artifacts.StageUpload,
			services.Wrap(services.ErrValidation, "ingest", "locate source", "task carries no source path", nil))
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageUpload,
			services.Wrap(services.ErrValidation, "ingest", "locate source",
				fmt.Sprintf("source file for job %s not found: %s", task.JobID, sourcePath), err))
	}

	result, err := o.media.Process(ctx, task.JobID, sourcePath)
	if err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageUpload, err)
	}
	if err := artifacts.SaveMediaAssets(jobDir, result.Assets); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageUpload, err)
	}

	language := strings.TrimSpace(task.Language)
	if language == "" {
		language = o.language
	}
	next := queue.NewTranscribeTask(task.JobID, jobDir, language, strings.TrimSpace(task.Prompt))
	if err := o.queue.Enqueue(ctx, next); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageChunking,
			services.Wrap(services.ErrTransient, "ingest", "enqueue transcribe", "failed to hand job off to transcription", err))
	}

	o.logger.InfoContext(ctx, "ingest completed",
		logging.String(logging.FieldJobID, task.JobID),
		logging.Int("assets", len(result.Assets)),
		logging.Int("chunks", len(result.ChunkPaths)))
	return nil
}

// runTranscribe transcribes every audio chunk in manifest order, assembles
// the transcript, persists it, and hands the job to summarization.
func (o *Orchestrator) runTranscribe(ctx context.Context, task queue.Task) error {
	jobDir := o.jobDir(task)
	if _, err := os.Stat(jobDir); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageTranscription,
			services.Wrap(services.ErrValidation, "transcribe", "locate job",
				fmt.Sprintf("job directory does not exist: %s", jobDir), err))
	}
	if err := artifacts.ClearJobFailure(jobDir); err != nil {
		return err
	}

	assets, err := artifacts.LoadMediaAssets(jobDir)
	if err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageTranscription, err)
	}
	chunks := audioChunks(assets)
	if len(chunks) == 0 {
		return o.markFailed(ctx, jobDir, task, artifacts.StageTranscription,
			services.Wrap(services.ErrValidation, "transcribe", "load manifest",
				fmt.Sprintf("no audio chunks recorded for job %s", task.JobID), nil))
	}

	results, err := o.transcriber.TranscribeChunks(ctx, chunks, strings.TrimSpace(task.Language), strings.TrimSpace(task.Prompt))
	if err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageTranscription, err)
	}
	segments, err := transcript.Assemble(task.JobID, results, o.logger)
	if err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageTranscription, err)
	}
	if err := artifacts.SaveTranscriptSegments(jobDir, segments); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageTranscription, err)
	}

	if err := o.queue.Enqueue(ctx, queue.NewSummarizeTask(task.JobID, jobDir)); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageTranscription,
			services.Wrap(services.ErrTransient, "transcribe", "enqueue summarize", "failed to hand job off to summarization", err))
	}

	o.logger.InfoContext(ctx, "transcription completed",
		logging.String(logging.FieldJobID, task.JobID),
		logging.Int("chunks", len(chunks)),
		logging.Int("segments", len(segments)))
	return nil
}

// runSummarize builds the summary bundle from the stored transcript and
// persists sections, action items, and quality metrics.
func (o *Orchestrator) runSummarize(ctx context.Context, task queue.Task) error {
	jobDir := o.jobDir(task)
	if _, err := os.Stat(jobDir); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageSummary,
			services.Wrap(services.ErrValidation, "summarize", "locate job",
				fmt.Sprintf("job directory does not exist: %s", jobDir), err))
	}
	if err := artifacts.ClearJobFailure(jobDir); err != nil {
		return err
	}

	segments, err := artifacts.LoadTranscriptSegments(jobDir)
	if err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageSummary, err)
	}
	if len(segments) == 0 {
		return o.markFailed(ctx, jobDir, task, artifacts.StageSummary,
			services.Wrap(services.ErrValidation, "summarize", "load transcript",
				fmt.Sprintf("no transcript segments recorded for job %s", task.JobID), nil))
	}

	languageHint := ""
	for _, segment := range segments {
		if segment.Language != "" {
			languageHint = segment.Language
			break
		}
	}

	bundle, err := o.summarizer.Summarize(ctx, task.JobID, segments, languageHint)
	if err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageSummary, err)
	}

	if err := artifacts.SaveSummaryItems(jobDir, bundle.SummaryItems); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageSummary, err)
	}
	if err := artifacts.SaveActionItems(jobDir, bundle.ActionItems); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageSummary, err)
	}
	if err := artifacts.SaveSummaryQuality(jobDir, bundle.Quality); err != nil {
		return o.markFailed(ctx, jobDir, task, artifacts.StageSummary, err)
	}

	if err := o.notifier.NotifyJobCompleted(ctx, task.JobID, len(bundle.SummaryItems), len(bundle.ActionItems)); err != nil {
		o.logger.WarnContext(ctx, "completion notification failed",
			logging.String(logging.FieldJobID, task.JobID),
			logging.Error(err))
	}

	o.logger.InfoContext(ctx, "summary completed",
		logging.String(logging.FieldJobID, task.JobID),
		logging.Int("summary_items", len(bundle.SummaryItems)),
		logging.Int("action_items", len(bundle.ActionItems)))
	return nil
}

// audioChunks filters the manifest down to chunk assets in transcription
// order.
func audioChunks(assets []artifacts.MediaAsset) []artifacts.MediaAsset {
	chunks := make([]artifacts.MediaAsset, 0, len(assets))
	for _, asset := range assets {
		if asset.Kind == artifacts.KindAudioChunk {
			chunks = append(chunks, asset)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Order < chunks[j].Order })
	return chunks
}
