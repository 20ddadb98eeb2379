package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"minutes/internal/config"
)

const userAgent = "minutes/0.1"

// Service defines the notification surface exposed to the worker.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobID string, sections, actions int) error
	NotifyJobFailed(ctx context.Context, jobID, stage, message string) error
}

// NewService builds a webhook notifier when one is configured. When no
// webhook URL is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &webhookService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type webhookService struct {
	endpoint string
	client   *http.Client
}

func (s *webhookService) NotifyJobCompleted(ctx context.Context, jobID string, sections, actions int) error {
	jobID = strings.TrimSpace(jobID)
	data := payload{
		title:   "Minutes - Job Complete",
		message: fmt.Sprintf("✅ Summary ready for job %s (%d sections, %d action items)", jobID, sections, actions),
		tags:    []string{"minutes", "job", "completed"},
	}
	return s.send(ctx, data)
}

func (s *webhookService) NotifyJobFailed(ctx context.Context, jobID, stage, message string) error {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	text := fmt.Sprintf("❌ Job %s failed during %s", jobID, stage)
	if message = strings.TrimSpace(message); message != "" {
		text = fmt.Sprintf("%s: %s", text, message)
	}
	data := payload{
		title:    "Minutes - Job Failed",
		message:  text,
		tags:     []string{"minutes", "job", "failed"},
		priority: "high",
	}
	return s.send(ctx, data)
}

func (s *webhookService) send(ctx context.Context, data payload) error {
	if s == nil || s.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, int, int) error    { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string, string) error { return nil }
