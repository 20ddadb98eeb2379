package worker_test

import (
	"context"
	"fmt"
	"testing"

	"minutes/internal/artifacts"
	"minutes/internal/logging"
	"minutes/internal/media"
	"minutes/internal/queue"
	"minutes/internal/services/summarizer"
	"minutes/internal/testsupport"
	"minutes/internal/transcript"
	"minutes/internal/worker"
)

type fakeQueue struct {
	tasks []queue.Task
	err   error
}

func (f *fakeQueue) Enqueue(_ context.Context, task queue.Task) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeMedia struct {
	result *media.Result
	err    error
	calls  int
}

func (f *fakeMedia) Process(_ context.Context, _, _ string) (*media.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTranscriber struct {
	results  []transcript.ChunkResult
	err      error
	chunks   []artifacts.MediaAsset
	language string
	prompt   string
}

func (f *fakeTranscriber) TranscribeChunks(_ context.Context, chunks []artifacts.MediaAsset, language, prompt string) ([]transcript.ChunkResult, error) {
	f.chunks = chunks
	f.language = language
	f.prompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeSummarizer struct {
	bundle *summarizer.Bundle
	err    error
	hint   string
	calls  int
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, _ []artifacts.TranscriptSegment, languageHint string) (*summarizer.Bundle, error) {
	f.calls++
	f.hint = languageHint
	if f.err != nil {
		return nil, f.err
	}
	return f.bundle, nil
}

type notifierCall struct {
	jobID    string
	stage    string
	message  string
	sections int
	actions  int
}

type fakeNotifier struct {
	completed []notifierCall
	failed    []notifierCall
}

func (f *fakeNotifier) NotifyJobCompleted(_ context.Context, jobID string, sections, actions int) error {
	f.completed = append(f.completed, notifierCall{jobID: jobID, sections: sections, actions: actions})
	return nil
}

func (f *fakeNotifier) NotifyJobFailed(_ context.Context, jobID, stage, message string) error {
	f.failed = append(f.failed, notifierCall{jobID: jobID, stage: stage, message: message})
	return nil
}

type fixture struct {
	orchestrator *worker.Orchestrator
	queue        *fakeQueue
	media        *fakeMedia
	transcriber  *fakeTranscriber
	summarizer   *fakeSummarizer
	notifier     *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithLanguage("en"))

	fx := &fixture{
		queue:       &fakeQueue{},
		media:       &fakeMedia{},
		transcriber: &fakeTranscriber{},
		summarizer:  &fakeSummarizer{},
		notifier:    &fakeNotifier{},
	}
	o, err := worker.New(cfg, fx.queue, fx.notifier, logging.NewNop(),
		worker.WithMediaProcessor(fx.media),
		worker.WithTranscriber(fx.transcriber),
		worker.WithSummarizer(fx.summarizer),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	fx.orchestrator = o
	return fx
}

func masterAsset(jobID string, durationMS int64) artifacts.MediaAsset {
	return artifacts.MediaAsset{
		AssetID:    jobID + "-master",
		JobID:      jobID,
		Kind:       artifacts.KindAudioMaster,
		Path:       "/data/" + jobID + "/audio_master.wav",
		Order:      -1,
		DurationMS: durationMS,
		EndMS:      durationMS,
	}
}

func chunkAsset(jobID string, order int, startMS, endMS int64) artifacts.MediaAsset {
	return artifacts.MediaAsset{
		AssetID:    fmt.Sprintf("%s-chunk-%d", jobID, order),
		JobID:      jobID,
		Kind:       artifacts.KindAudioChunk,
		Path:       fmt.Sprintf("/data/%s/audio_chunks/chunk_%04d.wav", jobID, order),
		Order:      order,
		DurationMS: endMS - startMS,
		StartMS:    startMS,
		EndMS:      endMS,
	}
}

// chunkResult builds a transcription outcome whose response carries one
// usable segment spanning the whole chunk.
func chunkResult(assetID string, startMS, endMS int64, text, language string) transcript.ChunkResult {
	return transcript.ChunkResult{
		AssetID:  assetID,
		StartMS:  startMS,
		EndMS:    endMS,
		Text:     text,
		Language: language,
		Response: map[string]any{
			"text": text,
			"segments": []any{
				map[string]any{
					"text":  text,
					"start": 0.0,
					"end":   float64(endMS-startMS) / 1000.0,
				},
			},
		},
	}
}

func mustLoadFailure(t *testing.T, jobDir string) *artifacts.JobFailureRecord {
	t.Helper()
	record, err := artifacts.LoadJobFailure(jobDir)
	if err != nil {
		t.Fatalf("LoadJobFailure failed: %v", err)
	}
	if record == nil {
		t.Fatalf("expected a failure marker in %s", jobDir)
	}
	return record
}
