package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mediaguard/internal/config"
	"mediaguard/internal/notifications"
)

type capture struct {
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T) (*httptest.Server, *capture) {
	t.Helper()
	got := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		got.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func noon() time.Time {
	return time.Date(2024, 6, 10, 12, 0, 0, 0, time.Local)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventReviewNeeded, notifications.Payload{"file": "Example.mkv"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "review needed",
			event: notifications.EventReviewNeeded,
			payload: notifications.Payload{
				"file":   "Heat (1995).mkv",
				"reason": "duration 2520s is 4680s shorter than expected 7200s (tolerance 720s)",
			},
			expectTitle:   "mediaguard - Review Needed",
			expectMessage: "⚠️ Needs review: Heat (1995).mkv\nduration 2520s is 4680s shorter than expected 7200s (tolerance 720s)",
			expectTags:    "mediaguard,review",
		},
		{
			name:  "probe failed",
			event: notifications.EventProbeFailed,
			payload: notifications.Payload{
				"file":  "broken.mkv",
				"error": "ffprobe exited with status 1",
			},
			expectTitle:   "mediaguard - Probe Failed",
			expectMessage: "❓ Could not probe: broken.mkv\nffprobe exited with status 1",
			expectTags:    "mediaguard,probe,unknown",
		},
		{
			name:  "batch completed",
			event: notifications.EventBatchCompleted,
			payload: notifications.Payload{
				"processed": 12,
				"valid":     9,
				"review":    2,
				"unknown":   1,
				"duration":  95 * time.Second,
			},
			expectTitle:   "mediaguard - Scan Complete",
			expectMessage: "Scan complete: 12 files in 1m35s\nvalid 9, review 2, unknown 1, deferred 0, errors 0",
			expectTags:    "mediaguard,scan,completed",
		},
		{
			name:  "batch completed with errors",
			event: notifications.EventBatchCompleted,
			payload: notifications.Payload{
				"processed": 3,
				"errors":    1,
				"duration":  2 * time.Second,
			},
			expectTitle:   "mediaguard - Scan Complete (with errors)",
			expectMessage: "Scan complete: 3 files in 2s\nvalid 0, review 0, unknown 0, deferred 0, errors 1",
			expectTags:    "mediaguard,scan,completed",
		},
		{
			name:           "keys exhausted",
			event:          notifications.EventKeysExhausted,
			payload:        notifications.Payload{"deferred": 4},
			expectTitle:    "mediaguard - API Keys Exhausted",
			expectMessage:  "🔑 4 files deferred: no usable API key. They will be looked up on the next run.",
			expectTags:     "mediaguard,keys,warning",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "metadata store",
				"error":   "database is locked",
			},
			expectTitle:    "mediaguard - Error",
			expectMessage:  "❌ Error with metadata store: database is locked",
			expectTags:     "mediaguard,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "mediaguard - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "mediaguard,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, got := newCaptureServer(t)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg, notifications.WithClock(noon))

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}
			if got.calls != 1 {
				t.Fatalf("expected 1 request, got %d", got.calls)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("message = %q, want %q", got.body, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	srv, got := newCaptureServer(t)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Review = false
	cfg.Notifications.Keys = false
	cfg.Notifications.Errors = false
	cfg.Notifications.BatchMinFiles = 5
	svc := notifications.NewService(&cfg, notifications.WithClock(noon))

	ctx := context.Background()
	events := []struct {
		event   notifications.Event
		payload notifications.Payload
	}{
		{notifications.EventReviewNeeded, notifications.Payload{"file": "a.mkv"}},
		{notifications.EventProbeFailed, notifications.Payload{"file": "b.mkv"}},
		{notifications.EventKeysExhausted, notifications.Payload{"deferred": 1}},
		{notifications.EventError, notifications.Payload{"error": "boom"}},
		{notifications.EventBatchCompleted, notifications.Payload{"processed": 4}},
		{notifications.Event("unknown_event"), nil},
	}
	for _, ev := range events {
		if err := svc.Publish(ctx, ev.event, ev.payload); err != nil {
			t.Fatalf("Publish(%s) returned error: %v", ev.event, err)
		}
	}
	if got.calls != 0 {
		t.Fatalf("expected suppressed events to send nothing, got %d requests", got.calls)
	}

	if err := svc.Publish(ctx, notifications.EventBatchCompleted, notifications.Payload{"processed": 5}); err != nil {
		t.Fatalf("Publish batch returned error: %v", err)
	}
	if got.calls != 1 {
		t.Fatalf("expected batch at threshold to send, got %d requests", got.calls)
	}
}

func TestNtfyServiceQuietHours(t *testing.T) {
	tests := []struct {
		name          string
		at            time.Time
		allowCritical bool
		event         notifications.Event
		expectSent    bool
	}{
		{"outside window", time.Date(2024, 6, 10, 12, 0, 0, 0, time.Local), true, notifications.EventReviewNeeded, true},
		{"before midnight", time.Date(2024, 6, 10, 23, 30, 0, 0, time.Local), true, notifications.EventReviewNeeded, false},
		{"after midnight", time.Date(2024, 6, 11, 6, 59, 0, 0, time.Local), true, notifications.EventReviewNeeded, false},
		{"window end is exclusive", time.Date(2024, 6, 11, 7, 0, 0, 0, time.Local), true, notifications.EventReviewNeeded, true},
		{"critical allowed", time.Date(2024, 6, 10, 23, 30, 0, 0, time.Local), true, notifications.EventError, true},
		{"critical held", time.Date(2024, 6, 10, 23, 30, 0, 0, time.Local), false, notifications.EventError, false},
		{"test always sends", time.Date(2024, 6, 10, 23, 30, 0, 0, time.Local), false, notifications.EventTest, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, got := newCaptureServer(t)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			cfg.Notifications.QuietHours.Enabled = true
			cfg.Notifications.QuietHours.Start = "22:00"
			cfg.Notifications.QuietHours.End = "07:00"
			cfg.Notifications.QuietHours.AllowCritical = tc.allowCritical
			at := tc.at
			svc := notifications.NewService(&cfg, notifications.WithClock(func() time.Time { return at }))

			payload := notifications.Payload{"file": "a.mkv", "error": "boom"}
			if err := svc.Publish(context.Background(), tc.event, payload); err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}
			if sent := got.calls == 1; sent != tc.expectSent {
				t.Fatalf("sent = %v, want %v", sent, tc.expectSent)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
