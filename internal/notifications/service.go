package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediaguard/internal/config"
)

const userAgent = "mediaguard/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventReviewNeeded   Event = "review_needed"
	EventProbeFailed    Event = "probe_failed"
	EventBatchCompleted Event = "batch_completed"
	EventKeysExhausted  Event = "keys_exhausted"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event fields. Missing keys render as empty values.
type Payload map[string]any

func (p Payload) string(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) time.Duration {
	if v, ok := p[key].(time.Duration); ok {
		return v
	}
	return 0
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// Option configures the ntfy service.
type Option func(*ntfyService)

// WithClock overrides the time source used for quiet hours.
func WithClock(now func() time.Time) Option {
	return func(n *ntfyService) {
		if now != nil {
			n.now = now
		}
	}
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, opts ...Option) Service {
	if cfg == nil {
		return noopService{}
	}
	settings := cfg.Notifications
	topic := strings.TrimSpace(settings.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(settings.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		settings: settings,
		quiet:    parseQuietHours(settings.QuietHours),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func (m message) critical() bool {
	return m.priority == "high" || m.priority == "urgent"
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	settings config.Notifications
	quiet    quietWindow
	now      func() time.Time
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event, payload) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	if event != EventTest && n.quiet.contains(n.now()) {
		if !msg.critical() || !n.settings.QuietHours.AllowCritical {
			return nil
		}
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event, payload Payload) bool {
	switch event {
	case EventReviewNeeded, EventProbeFailed:
		return n.settings.Review
	case EventBatchCompleted:
		return n.settings.Batch && payload.int("processed") >= n.settings.BatchMinFiles
	case EventKeysExhausted:
		return n.settings.Keys
	case EventError:
		return n.settings.Errors
	case EventTest:
		return true
	default:
		return false
	}
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventReviewNeeded:
		body := fmt.Sprintf("⚠️ Needs review: %s", payload.string("file"))
		if reason := payload.string("reason"); reason != "" {
			body += "\n" + reason
		}
		return message{
			title: "mediaguard - Review Needed",
			body:  body,
			tags:  []string{"mediaguard", "review"},
		}, true
	case EventProbeFailed:
		body := fmt.Sprintf("❓ Could not probe: %s", payload.string("file"))
		if errText := payload.string("error"); errText != "" {
			body += "\n" + errText
		}
		return message{
			title: "mediaguard - Probe Failed",
			body:  body,
			tags:  []string{"mediaguard", "probe", "unknown"},
		}, true
	case EventBatchCompleted:
		duration := payload.duration("duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		title := "mediaguard - Scan Complete"
		errorsCount := payload.int("errors")
		if errorsCount > 0 {
			title = "mediaguard - Scan Complete (with errors)"
		}
		body := fmt.Sprintf("Scan complete: %d files in %s\nvalid %d, review %d, unknown %d, deferred %d, errors %d",
			payload.int("processed"), duration, payload.int("valid"), payload.int("review"),
			payload.int("unknown"), payload.int("deferred"), errorsCount)
		return message{
			title: title,
			body:  body,
			tags:  []string{"mediaguard", "scan", "completed"},
		}, true
	case EventKeysExhausted:
		return message{
			title:    "mediaguard - API Keys Exhausted",
			body:     fmt.Sprintf("🔑 %d files deferred: no usable API key. They will be looked up on the next run.", payload.int("deferred")),
			tags:     []string{"mediaguard", "keys", "warning"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payload.string("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if errText := payload.string("error"); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "mediaguard - Error",
			body:     builder.String(),
			tags:     []string{"mediaguard", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "mediaguard - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"mediaguard", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
