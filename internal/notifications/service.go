// Package notifications pushes operator alerts through ntfy. With no topic
// configured every notification is a silent no-op.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"apogee/internal/config"
)

const userAgent = "Apogee-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyItemPublished(ctx context.Context, title, url string) error
	NotifyItemFailed(ctx context.Context, title, reasonCode, message string) error
	NotifyRepetitionPause(ctx context.Context, title string, score float64) error
	NotifyTopicsMined(ctx context.Context, channelName string, accepted, rejected int) error
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyItemPublished(ctx context.Context, title, url string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Published: %s", title)
	if url = strings.TrimSpace(url); url != "" {
		message = fmt.Sprintf("%s\n%s", message, url)
	}
	data := payload{
		title:    "Apogee - Published",
		message:  message,
		tags:     []string{"apogee", "publish", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyItemFailed(ctx context.Context, title, reasonCode, message string) error {
	title = strings.TrimSpace(title)
	var builder strings.Builder
	fmt.Fprintf(&builder, "Item failed: %s (%s)", title, reasonCode)
	if message = strings.TrimSpace(message); message != "" {
		builder.WriteString("\n")
		builder.WriteString(message)
	}
	data := payload{
		title:    "Apogee - Item Failed",
		message:  builder.String(),
		tags:     []string{"apogee", "item", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRepetitionPause(ctx context.Context, title string, score float64) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:    "Apogee - Paused for Review",
		message:  fmt.Sprintf("Repetition score %.2f paused: %s\nResume with 'apogee queue resume'", score, title),
		tags:     []string{"apogee", "repetition", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTopicsMined(ctx context.Context, channelName string, accepted, rejected int) error {
	channelName = strings.TrimSpace(channelName)
	data := payload{
		title:   "Apogee - Topics Mined",
		message: fmt.Sprintf("Mined topics for %s: %d accepted, %d rejected as near-duplicates", channelName, accepted, rejected),
		tags:    []string{"apogee", "mining", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	data := payload{
		title:   "Apogee - Queue Started",
		message: fmt.Sprintf("Started processing queue with %d items", count),
		tags:    []string{"apogee", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var message string
	var title string
	if failed == 0 {
		title = "Apogee - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d items processed in %s", processed, durationText)
	} else {
		title = "Apogee - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"apogee", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Apogee - Error",
		message:  builder.String(),
		tags:     []string{"apogee", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Apogee - Test",
		message:  "Notification system test",
		tags:     []string{"apogee", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func (noopService) NotifyItemPublished(context.Context, string, string) error        { return nil }
func (noopService) NotifyItemFailed(context.Context, string, string, string) error   { return nil }
func (noopService) NotifyRepetitionPause(context.Context, string, float64) error     { return nil }
func (noopService) NotifyTopicsMined(context.Context, string, int, int) error        { return nil }
func (noopService) NotifyQueueStarted(context.Context, int) error                    { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
