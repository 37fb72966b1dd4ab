package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"shortbox/internal/config"
	"shortbox/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventReviewReady, notifications.Payload{"jobID": "j1"}); err != nil {
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
			name:          "review ready",
			event:         notifications.EventReviewReady,
			payload:       notifications.Payload{"jobID": "j1", "files": 12, "groups": 2},
			expectTitle:   "shortbox - Ready for Review",
			expectMessage: "📚 Job j1: 12 files in 2 series ready for review",
			expectTags:    "shortbox,review",
		},
		{
			name:          "apply completed",
			event:         notifications.EventApplyCompleted,
			payload:       notifications.Payload{"jobID": "j1", "succeeded": 12, "failed": 0},
			expectTitle:   "shortbox - Metadata Applied",
			expectMessage: "✅ Job j1: 12 files updated",
			expectTags:    "shortbox,apply,completed",
		},
		{
			name:           "apply completed with failures",
			event:          notifications.EventApplyCompleted,
			payload:        notifications.Payload{"jobID": "j1", "succeeded": 10, "failed": 2},
			expectTitle:    "shortbox - Metadata Applied (with errors)",
			expectMessage:  "⚠️ Job j1: 10 files updated, 2 failed",
			expectTags:     "shortbox,apply,completed",
			expectPriority: "high",
		},
		{
			name:           "job failed",
			event:          notifications.EventJobFailed,
			payload:        notifications.Payload{"jobID": "j2", "step": "initializing", "error": "comicvine: invalid api key"},
			expectTitle:    "shortbox - Error",
			expectMessage:  "❌ Job j2 failed during initializing: comicvine: invalid api key",
			expectTags:     "shortbox,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "shortbox - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "shortbox,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotTitle, gotTags, gotPriority, gotBody string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if gotTitle != tc.expectTitle {
				t.Fatalf("title = %q, want %q", gotTitle, tc.expectTitle)
			}
			if gotBody != tc.expectMessage {
				t.Fatalf("body = %q, want %q", gotBody, tc.expectMessage)
			}
			if gotTags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", gotTags, tc.expectTags)
			}
			if gotPriority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", gotPriority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic is read-only", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}

func TestUnknownEventIsAnError(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "http://127.0.0.1:1/topic"
	if err := notifications.NewService(&cfg).Publish(context.Background(), "bogus", nil); err == nil {
		t.Fatal("expected unknown event error")
	}
}
