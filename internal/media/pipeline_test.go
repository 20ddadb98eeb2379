package media_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"minutes/internal/artifacts"
	"minutes/internal/media"
	"minutes/internal/media/ffprobe"
	"minutes/internal/services"
)

// fileCreatingRunner pretends to be ffmpeg: it records each invocation and
// writes the output file named by the final argument.
type fileCreatingRunner struct {
	args [][]string
}

func (r *fileCreatingRunner) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cloned := append([]string(nil), args...)
	r.args = append(r.args, cloned)
	dest := args[len(args)-1]
	return nil, os.WriteFile(dest, []byte("wav"), 0o644)
}

type failingRunner struct {
	err    error
	stderr string
}

func (r *failingRunner) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	return []byte(r.stderr), r.err
}

func probeReporting(duration string) media.ProbeFunc {
	return func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{Format: ffprobe.Format{Duration: duration}}, nil
	}
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("recording"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func newPipeline(t *testing.T, opts media.Options, options ...media.Option) *media.Pipeline {
	t.Helper()
	pipeline, err := media.NewPipeline(opts, nil, options...)
	if err != nil {
		t.Fatalf("NewPipeline returned error: %v", err)
	}
	return pipeline
}

func TestNewPipelineRejectsNonPositiveChunkDuration(t *testing.T) {
	_, err := media.NewPipeline(media.Options{ChunkSeconds: 0}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	_, err = media.NewPipeline(media.Options{ChunkSeconds: -5}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestProcessProducesContiguousChunks(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "standup.mp4")
	runner := &fileCreatingRunner{}
	pipeline := newPipeline(t,
		media.Options{ChunkSeconds: 900, SampleRate: 16000, Channels: 1},
		media.WithRunner(runner),
		media.WithProbe(probeReporting("1830.0")),
	)

	result, err := pipeline.Process(context.Background(), "job-1", source)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if filepath.Base(result.MasterPath) != "standup_audio.wav" {
		t.Fatalf("unexpected master name: %q", filepath.Base(result.MasterPath))
	}
	if len(result.ChunkPaths) != 3 {
		t.Fatalf("expected 3 chunks for 1830s audio, got %d", len(result.ChunkPaths))
	}
	for i, path := range result.ChunkPaths {
		if filepath.Dir(path) != artifacts.ChunkDir(dir) {
			t.Fatalf("chunk %d outside chunk directory: %q", i, path)
		}
	}
	if filepath.Base(result.ChunkPaths[0]) != "standup_chunk_0000.wav" {
		t.Fatalf("unexpected chunk name: %q", filepath.Base(result.ChunkPaths[0]))
	}

	// One extraction plus one invocation per chunk.
	if len(runner.args) != 4 {
		t.Fatalf("expected 4 transcoder invocations, got %d", len(runner.args))
	}
	expectedExtract := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", source,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		result.MasterPath,
	}
	if !equalStrings(runner.args[0], expectedExtract) {
		t.Fatalf("unexpected extract args:\ngot  %v\nwant %v", runner.args[0], expectedExtract)
	}
	lastChunkArgs := runner.args[3]
	if got := argValue(lastChunkArgs, "-ss"); got != "1800.000" {
		t.Fatalf("unexpected final chunk offset: %q", got)
	}
	if got := argValue(lastChunkArgs, "-t"); got != "30.000" {
		t.Fatalf("unexpected final chunk length: %q", got)
	}

	assets := result.Assets
	if len(assets) != 4 {
		t.Fatalf("expected master plus 3 chunk assets, got %d", len(assets))
	}
	master := assets[0]
	if master.Kind != artifacts.KindAudioMaster || master.Order != -1 {
		t.Fatalf("unexpected master entry: %+v", master)
	}
	if master.StartMS != 0 || master.EndMS != 1830000 || master.DurationMS != 1830000 {
		t.Fatalf("unexpected master bounds: start=%d end=%d duration=%d", master.StartMS, master.EndMS, master.DurationMS)
	}
	var cursor int64
	for i, chunk := range assets[1:] {
		if chunk.Kind != artifacts.KindAudioChunk {
			t.Fatalf("asset %d has kind %q", i, chunk.Kind)
		}
		if chunk.Order != i {
			t.Fatalf("chunk %d has order %d", i, chunk.Order)
		}
		if chunk.StartMS != cursor {
			t.Fatalf("chunk %d not contiguous: start=%d want %d", i, chunk.StartMS, cursor)
		}
		if chunk.EndMS != chunk.StartMS+chunk.DurationMS {
			t.Fatalf("chunk %d bounds inconsistent: %+v", i, chunk)
		}
		if chunk.ParentAssetID != master.AssetID {
			t.Fatalf("chunk %d not linked to master", i)
		}
		if chunk.JobID != "job-1" {
			t.Fatalf("chunk %d missing job id", i)
		}
		cursor = chunk.EndMS
	}
	if cursor != master.EndMS {
		t.Fatalf("chunks do not cover master: end=%d want %d", cursor, master.EndMS)
	}
}

func TestProcessShortAudioYieldsSingleChunk(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "huddle.wav")
	runner := &fileCreatingRunner{}
	pipeline := newPipeline(t,
		media.Options{ChunkSeconds: 900},
		media.WithRunner(runner),
		media.WithProbe(probeReporting("42.5")),
	)

	result, err := pipeline.Process(context.Background(), "job-2", source)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(result.ChunkPaths) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(result.ChunkPaths))
	}
	chunk := result.Assets[1]
	if chunk.StartMS != 0 || chunk.EndMS != 42500 {
		t.Fatalf("unexpected chunk bounds: %+v", chunk)
	}
	if result.Assets[0].DurationMS != 42500 {
		t.Fatalf("unexpected master duration: %d", result.Assets[0].DurationMS)
	}
}

func TestProcessFailsWhenSourceMissing(t *testing.T) {
	pipeline := newPipeline(t,
		media.Options{ChunkSeconds: 900},
		media.WithRunner(&fileCreatingRunner{}),
		media.WithProbe(probeReporting("10")),
	)
	_, err := pipeline.Process(context.Background(), "job-3", filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessMapsMissingTranscoderBinary(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "sync.mp4")
	runner := &failingRunner{err: &exec.Error{Name: "ffmpeg", Err: exec.ErrNotFound}}
	pipeline := newPipeline(t,
		media.Options{ChunkSeconds: 900},
		media.WithRunner(runner),
		media.WithProbe(probeReporting("10")),
	)

	_, err := pipeline.Process(context.Background(), "job-4", source)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}
}

func TestProcessSurfacesTranscoderFailureOutput(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "retro.mp4")
	runner := &failingRunner{err: errors.New("signal: killed"), stderr: "out of memory"}
	pipeline := newPipeline(t,
		media.Options{ChunkSeconds: 900},
		media.WithRunner(runner),
		media.WithProbe(probeReporting("10")),
	)

	_, err := pipeline.Process(context.Background(), "job-5", source)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestProcessFailsWhenProbeReportsEmptyAudio(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "silence.mp4")
	pipeline := newPipeline(t,
		media.Options{ChunkSeconds: 900},
		media.WithRunner(&fileCreatingRunner{}),
		media.WithProbe(probeReporting("0")),
	)

	_, err := pipeline.Process(context.Background(), "job-6", source)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty audio, got %v", err)
	}
}

func TestProcessFailsWhenProbeErrors(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "kickoff.mp4")
	probe := func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("probe exploded")
	}
	pipeline := newPipeline(t,
		media.Options{ChunkSeconds: 900},
		media.WithRunner(&fileCreatingRunner{}),
		media.WithProbe(probe),
	)

	_, err := pipeline.Process(context.Background(), "job-7", source)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestProcessResolvesProbeBesideExplicitTranscoder(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "planning.mp4")
	var probeBinary string
	probe := func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		probeBinary = binary
		return ffprobe.Result{Format: ffprobe.Format{Duration: "5"}}, nil
	}
	pipeline := newPipeline(t,
		media.Options{ChunkSeconds: 900, FFmpegPath: "/opt/video/ffmpeg"},
		media.WithRunner(&fileCreatingRunner{}),
		media.WithProbe(probe),
	)

	if _, err := pipeline.Process(context.Background(), "job-8", source); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if probeBinary != filepath.Join("/opt/video", "ffprobe") {
		t.Fatalf("expected probe beside transcoder, got %q", probeBinary)
	}
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
