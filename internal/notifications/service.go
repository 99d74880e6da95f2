package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediaferry/internal/config"
	"mediaferry/internal/queue"
)

const userAgent = "mediaferry/1"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyTaskFailed(ctx context.Context, task *queue.Task, cause error) error
	NotifyTaskCompleted(ctx context.Context, task *queue.Task, elapsed time.Duration) error
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
	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		onComplete: cfg.Notifications.OnComplete,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	onComplete bool
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, task *queue.Task, cause error) error {
	if task == nil {
		return nil
	}
	reason := "unknown error"
	if cause != nil {
		reason = strings.TrimSpace(cause.Error())
	}
	return n.send(ctx, payload{
		title: fmt.Sprintf("mediaferry - %s task %d failed", task.Kind, task.ID),
		message: fmt.Sprintf("%s\nDestination: %s\nAttempts: %d of %d",
			reason, task.Payload.Dest, task.Attempts, task.AttemptsAllowed),
		tags:     []string{"mediaferry", string(task.Kind), "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyTaskCompleted(ctx context.Context, task *queue.Task, elapsed time.Duration) error {
	if task == nil || !n.onComplete {
		return nil
	}
	elapsed = elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return n.send(ctx, payload{
		title:   fmt.Sprintf("mediaferry - %s task %d complete", task.Kind, task.ID),
		message: fmt.Sprintf("Published %s in %s", task.Payload.Dest, elapsed),
		tags:    []string{"mediaferry", string(task.Kind), "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "mediaferry - Test",
		message:  "Notification system test",
		tags:     []string{"mediaferry", "test"},
		priority: "low",
	})
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

func (noopService) NotifyTaskFailed(context.Context, *queue.Task, error) error            { return nil }
func (noopService) NotifyTaskCompleted(context.Context, *queue.Task, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }
