package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"payment-gateway/internal/eventing"
)

const (
	headerEventType = "X-Event-Type"
	headerEventID   = "X-Event-Id"
)

// WebhookNotifier posts event envelopes to a webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver sends the envelope as JSON. Any non-2xx response is an error so the
// outbox keeps the record for another attempt.
func (n *WebhookNotifier) Deliver(ctx context.Context, env eventing.Envelope) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEventType, env.EventType)
	req.Header.Set(headerEventID, env.EventID)
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: non-2xx status %d", resp.StatusCode)
	}
	return nil
}
