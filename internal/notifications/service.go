package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lipsync/internal/config"
)

const userAgent = "lipsync/0.1"

// Outcome summarizes a finished job for notification purposes.
type Outcome struct {
	JobID      string
	Status     string
	OutputPath string
	Segments   int
	Truncated  bool
	ErrorKind  string
	Message    string
	Elapsed    time.Duration
}

// Service is the notification surface used by the workflow manager.
type Service interface {
	NotifyJobFinished(ctx context.Context, outcome Outcome) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.NotifyCompleted,
		failed:    cfg.Notifications.NotifyFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) NotifyJobFinished(ctx context.Context, outcome Outcome) error {
	data, ok := n.format(outcome)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) format(o Outcome) (payload, bool) {
	switch o.Status {
	case "completed":
		if !n.completed {
			return payload{}, false
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Job %s finished: %d segment(s)", o.JobID, o.Segments)
		if o.Elapsed > 0 {
			fmt.Fprintf(&b, " in %s", o.Elapsed.Round(time.Second))
		}
		if o.Truncated {
			b.WriteString("\nSegment counts differed; trailing segments were dropped")
		}
		if o.OutputPath != "" {
			fmt.Fprintf(&b, "\n%s", o.OutputPath)
		}
		return payload{
			title:   "Lipsync - Completed",
			message: b.String(),
			tags:    []string{"lipsync", "completed"},
		}, true
	case "canceled":
		return payload{}, false
	default:
		if !n.failed {
			return payload{}, false
		}
		msg := fmt.Sprintf("Job %s failed", o.JobID)
		if o.ErrorKind != "" {
			msg += " (" + o.ErrorKind + ")"
		}
		if o.Message != "" {
			msg += ": " + o.Message
		}
		return payload{
			title:    "Lipsync - Failed",
			message:  msg,
			tags:     []string{"lipsync", "error"},
			priority: "high",
		}, true
	}
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Lipsync - Test",
		message:  "Notification system test",
		tags:     []string{"lipsync", "test"},
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

func (noopService) NotifyJobFinished(context.Context, Outcome) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
