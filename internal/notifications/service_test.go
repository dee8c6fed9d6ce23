package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apogee/internal/config"
	"apogee/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyItemPublished(context.Background(), "Example", "https://example.org/v/1"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
}

func newNtfyService(t *testing.T, endpoint string) notifications.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = endpoint
	return notifications.NewService(&cfg)
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	defer server.Close()
	svc := newNtfyService(t, server.URL)
	ctx := context.Background()

	if err := svc.NotifyItemPublished(ctx, "Why the Ocean Glows", "https://example.org/v/1"); err != nil {
		t.Fatalf("NotifyItemPublished failed: %v", err)
	}
	if err := svc.NotifyRepetitionPause(ctx, "Why the Ocean Glows", 0.82); err != nil {
		t.Fatalf("NotifyRepetitionPause failed: %v", err)
	}
	if err := svc.NotifyItemFailed(ctx, "Why the Ocean Glows", "fact_check_exhausted", "two rejections"); err != nil {
		t.Fatalf("NotifyItemFailed failed: %v", err)
	}
	if err := svc.NotifyQueueCompleted(ctx, 3, 1, 90*time.Second); err != nil {
		t.Fatalf("NotifyQueueCompleted failed: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("render timed out"), "rendering"); err != nil {
		t.Fatalf("NotifyError failed: %v", err)
	}

	if len(sink) != 5 {
		t.Fatalf("expected 5 notifications, got %d", len(sink))
	}

	published := sink[0]
	if published.title != "Apogee - Published" || published.priority != "high" {
		t.Fatalf("unexpected published notification: %#v", published)
	}
	if published.body != "Published: Why the Ocean Glows\nhttps://example.org/v/1" {
		t.Fatalf("unexpected published body: %q", published.body)
	}

	paused := sink[1]
	if paused.tags != "apogee,repetition,review" {
		t.Fatalf("unexpected pause tags: %q", paused.tags)
	}
	if paused.body != "Repetition score 0.82 paused: Why the Ocean Glows\nResume with 'apogee queue resume'" {
		t.Fatalf("unexpected pause body: %q", paused.body)
	}

	failed := sink[2]
	if failed.body != "Item failed: Why the Ocean Glows (fact_check_exhausted)\ntwo rejections" {
		t.Fatalf("unexpected failure body: %q", failed.body)
	}

	queue := sink[3]
	if queue.title != "Apogee - Queue Complete (with errors)" {
		t.Fatalf("unexpected queue title: %q", queue.title)
	}
	if queue.body != "Queue processing complete: 3 succeeded, 1 failed in 1m30s" {
		t.Fatalf("unexpected queue body: %q", queue.body)
	}

	errNote := sink[4]
	if errNote.body != "Error with rendering: render timed out" {
		t.Fatalf("unexpected error body: %q", errNote.body)
	}
}

func TestNtfyServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer server.Close()

	svc := newNtfyService(t, server.URL)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
