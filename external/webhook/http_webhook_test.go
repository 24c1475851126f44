package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/webhook"
	"github.com/google/go-cmp/cmp"
)

func TestNotifyModerationAction_EmptyWebhookURL(t *testing.T) {
	n := NewHTTPNotifier("")
	if err := n.NotifyModerationAction(context.Background(), webhook.ModerationActionPayload{ID: 1}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestNotifyModerationAction_Success(t *testing.T) {
	reason := "spam"
	want := webhook.ModerationActionPayload{
		ID:          7,
		ServerID:    "S1",
		ModeratorID: "M1",
		Action:      "ban",
		TargetUser:  "U42",
		Reason:      &reason,
		Timestamp:   time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC),
	}

	var got webhook.ModerationActionPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := NewHTTPNotifier(server.URL).NotifyModerationAction(context.Background(), want); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected payload (-want +got):\n%s", diff)
	}
}

func TestNotifyModerationAction_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if err := NewHTTPNotifier(server.URL).NotifyModerationAction(context.Background(), webhook.ModerationActionPayload{ID: 1}); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}
