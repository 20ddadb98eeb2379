package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"minutes/internal/artifacts"
	"minutes/internal/logging"
	"minutes/internal/restclient"
	"minutes/internal/services"
	"minutes/internal/transcript"
)

const (
	defaultBaseURL       = "https://api.openai.com/v1"
	defaultModel         = "gpt-4o-transcribe"
	defaultMaxConcurrent = 4

	transcriptionsPath = "/audio/transcriptions"
	diarizeSuffix      = "-diarize"
	serverVADStrategy  = `{"type": "server_vad"}`
)

// MIME types sent with the multipart file part, keyed by chunk extension.
// Anything else is rejected before the first request.
var chunkMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "audio/mp4",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// Config captures the connection, retry, and concurrency settings for the
// transcription API.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	UserAgent         string
	RequestTimeout    time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	RetryBackoffCap   time.Duration
	RequestsPerMinute float64
	MaxConcurrent     int
}

// Doer executes one HTTP request. *http.Client satisfies it; tests inject
// canned responses.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client uploads audio chunks to the transcription endpoint.
type Client struct {
	cfg     Config
	caller  *restclient.Caller
	http    Doer
	sleeper func(time.Duration)
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport used for uploads.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// New constructs a Client. The API key is required; the remaining settings
// fall back to the carried defaults.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcriber", "configure",
			"transcription api key must be provided", nil)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}

	client := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logging.NewComponentLogger(logger, "transcriber"),
	}
	for _, opt := range opts {
		opt(client)
	}

	var callerOpts []restclient.Option
	if client.sleeper != nil {
		callerOpts = append(callerOpts, restclient.WithSleeper(client.sleeper))
	}
	client.caller = restclient.New(restclient.Options{
		MaxAttempts:       cfg.MaxAttempts,
		BackoffBase:       cfg.RetryBackoff,
		BackoffCap:        cfg.RetryBackoffCap,
		RequestsPerMinute: cfg.RequestsPerMinute,
		RequestTimeout:    cfg.RequestTimeout,
	}, callerOpts...)

	return client, nil
}

// TranscribeChunks uploads every chunk and returns one result per chunk in
// input order. Every chunk is validated before the first upload; a missing
// file or unknown extension is permanent and must not burn API attempts.
func (c *Client) TranscribeChunks(ctx context.Context, chunks []artifacts.MediaAsset, language, prompt string) ([]transcript.ChunkResult, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	mimeTypes := make([]string, len(chunks))
	for i, chunk := range chunks {
		mimeType, err := chunkMIMEType(chunk.Path)
		if err != nil {
			return nil, err
		}
		mimeTypes[i] = mimeType
		if _, err := os.Stat(chunk.Path); err != nil {
			return nil, services.Wrap(services.ErrValidation, "transcriber", "transcribe chunks",
				fmt.Sprintf("audio chunk file does not exist: %s", chunk.Path), err)
		}
	}

	results := make([]transcript.ChunkResult, len(chunks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.cfg.MaxConcurrent)

	for i, chunk := range chunks {
		group.Go(func() error {
			result, err := c.transcribeChunk(groupCtx, chunk, mimeTypes[i], language, prompt)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) transcribeChunk(ctx context.Context, chunk artifacts.MediaAsset, mimeType, language, prompt string) (transcript.ChunkResult, error) {
	var zero transcript.ChunkResult

	payload, err := restclient.Do(ctx, c.caller, "transcribe chunk", func(ctx context.Context) (map[string]any, error) {
		return c.postChunk(ctx, chunk.Path, mimeType, language, prompt)
	})
	if err != nil {
		return zero, chunkRequestError(chunk.AssetID, err)
	}

	text, ok := transcriptText(payload)
	if !ok {
		return zero, services.Wrap(services.ErrMalformedResponse, "transcriber", "transcribe chunk",
			fmt.Sprintf("asset %s: transcription response did not contain text", chunk.AssetID), nil)
	}

	detected := detectedLanguage(payload)
	if detected == "" {
		detected = language
	}

	c.logger.Debug("chunk transcribed",
		logging.String(logging.FieldAssetID, chunk.AssetID),
		logging.Int("characters", len(text)))

	return transcript.ChunkResult{
		AssetID:  chunk.AssetID,
		StartMS:  chunk.StartMS,
		EndMS:    chunk.EndMS,
		Text:     text,
		Language: detected,
		Response: payload,
	}, nil
}

// postChunk performs one upload attempt. The multipart body is rebuilt per
// attempt; a consumed reader cannot be replayed.
func (c *Client) postChunk(ctx context.Context, path, mimeType, language, prompt string) (map[string]any, error) {
	body, contentType, err := c.encodeRequest(path, mimeType, language, prompt)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + transcriptionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", transcriptionsPath, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, restclient.NewStatusError(resp, raw)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "transcriber", "decode response",
			"transcription response is not a JSON object", err)
	}
	if payload == nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "transcriber", "decode response",
			"transcription response is not a JSON object", nil)
	}
	return payload, nil
}

func (c *Client) encodeRequest(path, mimeType, language, prompt string) (*bytes.Buffer, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", services.Wrap(services.ErrValidation, "transcriber", "read chunk",
			fmt.Sprintf("audio chunk file does not exist: %s", path), err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := [][2]string{{"model", c.cfg.Model}}
	if strings.HasSuffix(strings.ToLower(c.cfg.Model), diarizeSuffix) {
		fields = append(fields,
			[2]string{"response_format", "diarized_json"},
			[2]string{"chunking_strategy", serverVADStrategy},
		)
	} else {
		fields = append(fields,
			[2]string{"response_format", "verbose_json"},
			[2]string{"timestamp_granularities[]", "segment"},
		)
	}
	if language != "" {
		fields = append(fields, [2]string{"language", language})
	}
	if prompt != "" {
		fields = append(fields, [2]string{"prompt", prompt})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("encode field %s: %w", field[0], err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("encode file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("read audio chunk: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// chunkRequestError tags a failed upload with the offending asset and, when
// the provider answered, the HTTP status.
func chunkRequestError(assetID string, err error) error {
	var statusErr *restclient.StatusError
	if errors.As(err, &statusErr) {
		marker := services.ErrExternalTool
		if restclient.RetriableStatus(statusErr.StatusCode) {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "transcriber", "transcribe chunk",
			fmt.Sprintf("asset %s: transcription failed with status %d", assetID, statusErr.StatusCode), err)
	}

	marker := services.ErrTransient
	switch {
	case errors.Is(err, services.ErrMalformedResponse):
		marker = services.ErrMalformedResponse
	case errors.Is(err, services.ErrValidation):
		marker = services.ErrValidation
	case errors.Is(err, context.DeadlineExceeded):
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, "transcriber", "transcribe chunk",
		fmt.Sprintf("asset %s: transcription request failed", assetID), err)
}

// transcriptText normalizes the response text: the top-level text field when
// present, else the space-joined segment texts.
func transcriptText(payload map[string]any) (string, bool) {
	if text, ok := payload["text"].(string); ok {
		return text, true
	}
	if segments, ok := payload["segments"].([]any); ok {
		parts := make([]string, 0, len(segments))
		for _, entry := range segments {
			segment, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := segment["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " "), true
		}
	}
	return "", false
}

func detectedLanguage(payload map[string]any) string {
	if language, ok := payload["language"].(string); ok {
		return language
	}
	if metadata, ok := payload["metadata"].(map[string]any); ok {
		if language, ok := metadata["language"].(string); ok {
			return language
		}
	}
	return ""
}

func chunkMIMEType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType, ok := chunkMIMETypes[ext]; ok {
		return mimeType, nil
	}
	return "", services.Wrap(services.ErrUnsupportedMedia, "transcriber", "transcribe chunks",
		fmt.Sprintf("unsupported audio format %q for %s", ext, filepath.Base(path)), nil)
}
