package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shortbox/internal/config"
)

const userAgent = "shortbox/notifications"

// Event names a job milestone.
type Event string

const (
	EventReviewReady    Event = "review_ready"
	EventApplyCompleted Event = "apply_completed"
	EventJobFailed      Event = "job_failed"
	EventTest           Event = "test"
)

// Payload carries the event's details. Unknown keys are ignored.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	job := text(payload, "jobID")
	switch event {
	case EventReviewReady:
		body := fmt.Sprintf("📚 Job %s: %d files in %d series ready for review", job, number(payload, "files"), number(payload, "groups"))
		return message{
			title: "shortbox - Ready for Review",
			body:  body,
			tags:  []string{"shortbox", "review"},
		}, true
	case EventApplyCompleted:
		failed := number(payload, "failed")
		msg := message{
			title: "shortbox - Metadata Applied",
			body:  fmt.Sprintf("✅ Job %s: %d files updated", job, number(payload, "succeeded")),
			tags:  []string{"shortbox", "apply", "completed"},
		}
		if failed > 0 {
			msg.title = "shortbox - Metadata Applied (with errors)"
			msg.body = fmt.Sprintf("⚠️ Job %s: %d files updated, %d failed", job, number(payload, "succeeded"), failed)
			msg.priority = "high"
		}
		return msg, true
	case EventJobFailed:
		reason := text(payload, "error")
		if reason == "" {
			reason = "unknown"
		}
		body := fmt.Sprintf("❌ Job %s failed", job)
		if step := text(payload, "step"); step != "" {
			body += " during " + step
		}
		return message{
			title:    "shortbox - Error",
			body:     body + ": " + reason,
			tags:     []string{"shortbox", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "shortbox - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"shortbox", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func text(payload Payload, key string) string {
	if v, ok := payload[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func number(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
