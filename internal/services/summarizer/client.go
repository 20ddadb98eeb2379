package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"minutes/internal/artifacts"
	"minutes/internal/logging"
	"minutes/internal/restclient"
	"minutes/internal/services"
)

const (
	defaultBaseURL         = "https://api.openai.com/v1"
	defaultModel           = "gpt-4o-mini"
	defaultMaxOutputTokens = 1500

	chatCompletionsPath = "/chat/completions"

	systemPrompt = "You are a helpful AI that summarises meeting transcripts. " +
		"Always respond with valid JSON matching the requested schema."
)

// Config captures the connection, retry, and prompt settings for the
// summarization API. Temperature is passed through verbatim; zero is a valid
// sampling temperature.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	UserAgent         string
	Temperature       float64
	MaxOutputTokens   int
	RequestTimeout    time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	RetryBackoffCap   time.Duration
	RequestsPerMinute float64
	Limits            PromptLimits
}

// Doer executes one HTTP request. *http.Client satisfies it; tests inject
// canned responses.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client generates meeting summaries through a chat-completion endpoint.
type Client struct {
	cfg     Config
	caller  *restclient.Caller
	http    Doer
	sleeper func(time.Duration)
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport used for completion requests.
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
		return nil, services.Wrap(services.ErrConfiguration, "summarizer", "configure",
			"summarization api key must be provided", nil)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	cfg.Limits = cfg.Limits.withDefaults()

	client := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logging.NewComponentLogger(logger, "summarizer"),
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

// Bundle carries everything one summarization run produces. ModelMetadata is
// an opaque record of the provider response (id, model, usage, plus any
// quality or notes keys the model volunteered); it is logged, not persisted.
type Bundle struct {
	SummaryItems  []artifacts.SummaryItem
	ActionItems   []artifacts.ActionItem
	Quality       artifacts.SummaryQualityMetrics
	ModelMetadata map[string]any
}

// Summarize runs one summarization for the job's transcript. Section and
// action-item timestamps are clamped into the transcript's range; spans that
// collapse under clamping are dropped rather than persisted.
func (c *Client) Summarize(ctx context.Context, jobID string, segments []artifacts.TranscriptSegment, languageHint string) (*Bundle, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "summarizer", "summarize",
			"cannot summarize without transcript segments", nil)
	}

	prompt, err := BuildPrompt(jobID, segments, languageHint, c.cfg.Limits)
	if err != nil {
		return nil, err
	}

	envelope, err := restclient.Do(ctx, c.caller, "summarize", func(ctx context.Context) (map[string]any, error) {
		return c.postPrompt(ctx, prompt)
	})
	if err != nil {
		return nil, summaryRequestError(err)
	}

	content, err := messageContent(envelope)
	if err != nil {
		return nil, err
	}
	payload, err := decodeSummaryPayload(content)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"id":    envelope["id"],
		"model": envelope["model"],
		"usage": envelope["usage"],
	}
	for _, key := range []string{"quality", "notes"} {
		if value, ok := payload[key]; ok {
			metadata[key] = value
		}
	}

	limits := segmentBounds(segments)
	summaryItems := c.parseSummarySections(jobID, payload["summary_sections"], limits)
	actionItems := c.parseActionItems(jobID, payload["action_items"], len(summaryItems), limits)
	quality := evaluateQuality(segments, summaryItems, actionItems, metadata)

	c.logger.Debug("summary generated",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("summary_items", len(summaryItems)),
		logging.Int("action_items", len(actionItems)),
		logging.Float64("coverage_ratio", quality.CoverageRatio))

	return &Bundle{
		SummaryItems:  summaryItems,
		ActionItems:   actionItems,
		Quality:       quality,
		ModelMetadata: metadata,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
	MaxTokens      int               `json:"max_tokens"`
}

// postPrompt performs one completion attempt and returns the raw response
// envelope.
func (c *Client) postPrompt(ctx context.Context, prompt string) (map[string]any, error) {
	request := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
		MaxTokens:      c.cfg.MaxOutputTokens,
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + chatCompletionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", chatCompletionsPath, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, restclient.NewStatusError(resp, raw)
	}

	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "summarizer", "decode response",
			"summarization response is not a JSON object", err)
	}
	if envelope == nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "summarizer", "decode response",
			"summarization response is not a JSON object", nil)
	}
	return envelope, nil
}

// messageContent pulls the assistant text out of the first choice. Providers
// return either a plain string or a list of text chunks.
func messageContent(envelope map[string]any) (string, error) {
	choices, ok := envelope["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", services.Wrap(services.ErrMalformedResponse, "summarizer", "decode response",
			"summarization response did not include any choices", nil)
	}
	choice, ok := choices[0].(map[string]any)
	if ok {
		message, ok := choice["message"].(map[string]any)
		if ok {
			if content, ok := message["content"].(string); ok {
				return content, nil
			}
			if parts, ok := message["content"].([]any); ok {
				var builder strings.Builder
				for _, part := range parts {
					chunk, ok := part.(map[string]any)
					if !ok {
						continue
					}
					if text, ok := chunk["text"].(string); ok {
						builder.WriteString(text)
					}
				}
				if builder.Len() > 0 {
					return builder.String(), nil
				}
			}
		}
	}
	return "", services.Wrap(services.ErrMalformedResponse, "summarizer", "decode response",
		"summarization response missing textual content", nil)
}

// decodeSummaryPayload parses the model content as a JSON object. Models
// occasionally wrap the object in a markdown code fence despite the
// json_object response format; one fence-stripping retry is tolerated.
func decodeSummaryPayload(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrMalformedResponse, "summarizer", "decode summary",
			"summarization content is empty", nil)
	}

	var payload map[string]any
	directErr := json.Unmarshal([]byte(trimmed), &payload)
	if directErr == nil && payload != nil {
		return payload, nil
	}

	if stripped := stripCodeFence(trimmed); stripped != trimmed {
		payload = nil
		if err := json.Unmarshal([]byte(stripped), &payload); err == nil && payload != nil {
			return payload, nil
		}
	}
	return nil, services.Wrap(services.ErrMalformedResponse, "summarizer", "decode summary",
		"summarization content is not a JSON object", directErr)
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	body := strings.TrimLeft(content[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// summaryRequestError tags a failed completion with the HTTP status when the
// provider answered.
func summaryRequestError(err error) error {
	var statusErr *restclient.StatusError
	if errors.As(err, &statusErr) {
		marker := services.ErrExternalTool
		if restclient.RetriableStatus(statusErr.StatusCode) {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "summarizer", "summarize",
			fmt.Sprintf("summarization failed with status %d", statusErr.StatusCode), err)
	}

	marker := services.ErrTransient
	switch {
	case errors.Is(err, services.ErrMalformedResponse):
		marker = services.ErrMalformedResponse
	case errors.Is(err, context.DeadlineExceeded):
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, "summarizer", "summarize", "summarization request failed", err)
}
