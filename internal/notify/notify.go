// Package notify delivers fire-and-forget event notifications. Delivery
// failures are logged and never propagate: a lost notification must not
// roll back a funds or state transition.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Event is one platform event worth telling the outside world about.
type Event struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// LogNotifier just records events; the default when no webhook is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e Event) {
	slog.Info("event", "kind", e.Kind, "payload", e.Payload)
}

// WebhookNotifier POSTs events to a webhook URL in the background.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(_ context.Context, e Event) {
	go func() {
		body, err := json.Marshal(e)
		if err != nil {
			slog.Error("notify: marshal event", "kind", e.Kind, "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			slog.Error("notify: build request", "kind", e.Kind, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			slog.Warn("notify: delivery failed", "kind", e.Kind, "error", err)
			return
		}
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			slog.Warn("notify: webhook rejected event", "kind", e.Kind, "status", resp.StatusCode)
		}
	}()
}

// FromConfig picks the webhook sink when a URL is configured, otherwise logs.
func FromConfig(webhookURL string) Notifier {
	if webhookURL == "" {
		return LogNotifier{}
	}
	return NewWebhookNotifier(webhookURL)
}
