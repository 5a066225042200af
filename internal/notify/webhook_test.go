package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWebhookNotifierTemplateRendering(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, `{"rebuild_all":{{ .RebuildAll }},"count":{{ len .Results }}}`)
	if err != nil {
		t.Fatalf("NewWebhookNotifier error: %v", err)
	}

	report := makeReport(1, 0)
	report.RebuildAll = true

	if err := notifier.Notify(context.Background(), report); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if !strings.Contains(body, `"rebuild_all":true`) {
		t.Fatalf("expected rebuild_all in payload, got %s", body)
	}
	if !strings.Contains(body, `"count":1`) {
		t.Fatalf("expected count in payload, got %s", body)
	}
}

func TestWebhookNotifierRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&calls, 1)
		if count <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, "")
	if err != nil {
		t.Fatalf("NewWebhookNotifier error: %v", err)
	}
	notifier.poster.timing.backoffInitial = time.Millisecond
	notifier.poster.timing.backoffMax = 2 * time.Millisecond
	notifier.poster.timing.backoffMaxElapsed = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := notifier.Notify(ctx, makeReport(1, 1)); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestWebhookNotifierInvalidTemplate(t *testing.T) {
	_, err := NewWebhookNotifier(zerolog.Nop(), "http://example.com", "{{")
	if err == nil {
		t.Fatalf("expected template error")
	}
}

func TestWebhookNotifierSkipsEmptyReport(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, "")
	if err != nil {
		t.Fatalf("NewWebhookNotifier error: %v", err)
	}

	if err := notifier.Notify(context.Background(), Report{}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("empty report should not post, got %d calls", got)
	}
}
