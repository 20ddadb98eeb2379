package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"minutes/internal/artifacts"
	"minutes/internal/logging"
	"minutes/internal/media/ffprobe"
	"minutes/internal/services"
)

// Defaults applied when the corresponding option is left unset.
const (
	DefaultChunkSeconds = 900
	DefaultSampleRate   = 16000
	DefaultChannels     = 1

	audioCodec     = "pcm_s16le"
	audioBitDepth  = 16
	masterSuffix   = "_audio"
	audioExtension = ".wav"
)

// Runner abstracts transcoder invocation for testability. Run returns the
// process stderr output alongside any execution error.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// ProbeFunc inspects a media file and returns its parsed metadata.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Options configures a Pipeline.
type Options struct {
	FFmpegPath   string // transcoder binary; "ffmpeg" when empty
	FFprobePath  string // probe binary; resolved beside the transcoder when empty
	ChunkSeconds int    // chunk duration; must be positive
	SampleRate   int    // master sample rate in Hz
	Channels     int    // master channel count
}

// Option overrides pipeline collaborators, primarily for tests.
type Option func(*Pipeline)

// WithRunner injects a custom transcoder runner.
func WithRunner(r Runner) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.run = r
		}
	}
}

// WithProbe injects a custom probe implementation.
func WithProbe(fn ProbeFunc) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.probe = fn
		}
	}
}

// Pipeline prepares one uploaded recording for transcription.
type Pipeline struct {
	ffmpeg       string
	ffprobe      string
	chunkSeconds int
	sampleRate   int
	channels     int
	run          Runner
	probe        ProbeFunc
	logger       *slog.Logger
}

// NewPipeline validates the options and constructs a Pipeline.
func NewPipeline(opts Options, logger *slog.Logger, options ...Option) (*Pipeline, error) {
	if opts.ChunkSeconds <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "media", "configure",
			fmt.Sprintf("chunk duration must be positive, got %d", opts.ChunkSeconds), nil)
	}
	ffmpegPath := strings.TrimSpace(opts.FFmpegPath)
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pipeline := &Pipeline{
		ffmpeg:       ffmpegPath,
		ffprobe:      ffprobe.ResolveBinary(opts.FFprobePath, ffmpegPath),
		chunkSeconds: opts.ChunkSeconds,
		sampleRate:   opts.SampleRate,
		channels:     opts.Channels,
		run:          commandRunner{},
		probe:        ffprobe.Inspect,
		logger:       logging.NewComponentLogger(logger, "media"),
	}
	if pipeline.sampleRate <= 0 {
		pipeline.sampleRate = DefaultSampleRate
	}
	if pipeline.channels <= 0 {
		pipeline.channels = DefaultChannels
	}
	for _, opt := range options {
		opt(pipeline)
	}
	return pipeline, nil
}

// Result captures the files and manifest entries produced for one source.
// Assets holds the master entry first, followed by chunks in order.
type Result struct {
	MasterPath string
	ChunkPaths []string
	Assets     []artifacts.MediaAsset
}

// Process extracts the audio master for sourcePath, cuts it into chunks under
// the job's audio_chunks directory, and returns manifest entries describing
// every produced file. All outputs land beside the source file.
func (p *Pipeline) Process(ctx context.Context, jobID, sourcePath string) (*Result, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "media", "process", "source path required", nil)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, services.Wrap(services.ErrValidation, "media", "process",
			fmt.Sprintf("source file does not exist: %s", sourcePath), err)
	}

	jobDir := filepath.Dir(sourcePath)
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))

	masterPath, err := p.extractMaster(ctx, sourcePath, jobDir, stem)
	if err != nil {
		return nil, err
	}
	durationSeconds, err := p.probeDuration(ctx, masterPath)
	if err != nil {
		return nil, err
	}
	chunks, err := p.cutChunks(ctx, masterPath, jobDir, stem, durationSeconds)
	if err != nil {
		return nil, err
	}

	result := p.buildResult(jobID, sourcePath, masterPath, chunks)
	p.logger.InfoContext(ctx, "audio prepared",
		logging.String(logging.FieldJobID, jobID),
		logging.String("master", result.MasterPath),
		logging.Int("chunks", len(result.ChunkPaths)),
		logging.Float64("duration_seconds", durationSeconds))
	return result, nil
}

func (p *Pipeline) extractMaster(ctx context.Context, sourcePath, jobDir, stem string) (string, error) {
	dest := filepath.Join(jobDir, stem+masterSuffix+audioExtension)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", sourcePath,
		"-vn",
		"-acodec", audioCodec,
		"-ar", strconv.Itoa(p.sampleRate),
		"-ac", strconv.Itoa(p.channels),
		dest,
	}
	if err := p.runTranscoder(ctx, "extract audio", args); err != nil {
		return "", err
	}
	if _, err := os.Stat(dest); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "media", "extract audio",
			"transcoder reported success but produced no audio file", err)
	}
	return dest, nil
}

func (p *Pipeline) probeDuration(ctx context.Context, masterPath string) (float64, error) {
	result, err := p.probe(ctx, p.ffprobe, masterPath)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "media", "probe duration", "audio master probe failed", err)
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) {
		return 0, services.Wrap(services.ErrExternalTool, "media", "probe duration",
			"probe returned an unreadable duration", nil)
	}
	if duration <= 0 {
		return 0, services.Wrap(services.ErrValidation, "media", "probe duration",
			"audio master contains no audio data", nil)
	}
	return duration, nil
}

type chunkFile struct {
	path          string
	index         int
	startSeconds  float64
	lengthSeconds float64
}

func (p *Pipeline) cutChunks(ctx context.Context, masterPath, jobDir, stem string, durationSeconds float64) ([]chunkFile, error) {
	chunkDir := artifacts.ChunkDir(jobDir)
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "media", "cut chunks", "create chunk directory", err)
	}

	span := float64(p.chunkSeconds)
	var chunks []chunkFile
	for index := 0; ; index++ {
		start := float64(index) * span
		if start >= durationSeconds {
			break
		}
		length := math.Min(span, durationSeconds-start)
		path := filepath.Join(chunkDir, fmt.Sprintf("%s_chunk_%04d%s", stem, index, audioExtension))
		args := []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-i", masterPath,
			"-ss", formatSeconds(start),
			"-t", formatSeconds(length),
			"-acodec", audioCodec,
			"-ar", strconv.Itoa(p.sampleRate),
			"-ac", strconv.Itoa(p.channels),
			path,
		}
		if err := p.runTranscoder(ctx, fmt.Sprintf("cut chunk %d", index), args); err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "media", "cut chunks",
				fmt.Sprintf("transcoder produced no file for chunk %d", index), err)
		}
		p.logger.DebugContext(ctx, "chunk written",
			logging.Int("chunk", index),
			logging.String("path", path))
		chunks = append(chunks, chunkFile{path: path, index: index, startSeconds: start, lengthSeconds: length})
	}
	if len(chunks) == 0 {
		return nil, services.Wrap(services.ErrValidation, "media", "cut chunks", "audio chunking produced no results", nil)
	}
	return chunks, nil
}

func (p *Pipeline) buildResult(jobID, sourcePath, masterPath string, chunks []chunkFile) *Result {
	masterID := uuid.NewString()

	chunkAssets := make([]artifacts.MediaAsset, 0, len(chunks))
	chunkPaths := make([]string, 0, len(chunks))
	var totalMS int64
	for _, chunk := range chunks {
		startMS := int64(math.Round(chunk.startSeconds * 1000))
		durationMS := int64(math.Round(chunk.lengthSeconds * 1000))
		chunkAssets = append(chunkAssets, artifacts.MediaAsset{
			AssetID:       uuid.NewString(),
			JobID:         jobID,
			Kind:          artifacts.KindAudioChunk,
			Path:          absolutePath(chunk.path),
			Order:         chunk.index,
			DurationMS:    durationMS,
			StartMS:       startMS,
			EndMS:         startMS + durationMS,
			SampleRate:    p.sampleRate,
			Channels:      p.channels,
			BitDepth:      audioBitDepth,
			ParentAssetID: masterID,
		})
		chunkPaths = append(chunkPaths, chunk.path)
		totalMS += durationMS
	}

	master := artifacts.MediaAsset{
		AssetID:    masterID,
		JobID:      jobID,
		Kind:       artifacts.KindAudioMaster,
		Path:       absolutePath(masterPath),
		Order:      -1,
		DurationMS: totalMS,
		StartMS:    0,
		EndMS:      chunkAssets[len(chunkAssets)-1].EndMS,
		SampleRate: p.sampleRate,
		Channels:   p.channels,
		BitDepth:   audioBitDepth,
		Extra:      map[string]any{"source_path": absolutePath(sourcePath)},
	}

	assets := make([]artifacts.MediaAsset, 0, len(chunkAssets)+1)
	assets = append(assets, master)
	assets = append(assets, chunkAssets...)
	return &Result{MasterPath: masterPath, ChunkPaths: chunkPaths, Assets: assets}
}

func (p *Pipeline) runTranscoder(ctx context.Context, operation string, args []string) error {
	stderr, err := p.run.Run(ctx, p.ffmpeg, args)
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrExternalTool, "media", operation,
			"transcoder binary not found; install ffmpeg or set media.ffmpeg_path", err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(string(stderr))
		return services.Wrap(services.ErrExternalTool, "media", operation,
			fmt.Sprintf("transcoder exited with code %d: %s", exitErr.ExitCode(), detail), nil)
	}
	return services.Wrap(services.ErrExternalTool, "media", operation, "transcoder invocation failed", err)
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

func absolutePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

type commandRunner struct{}

func (commandRunner) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}
