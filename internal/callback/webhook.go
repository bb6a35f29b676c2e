package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stewardship-cloud/internal/eventing"
	"stewardship-cloud/internal/observability/metrics"
)

const defaultTimeout = 10 * time.Second

// Message is the callback body posted to async callers.
type Message struct {
	Kind      string    `json:"kind"`
	Delivered time.Time `json:"delivered_at"`
	Result    any       `json:"result"`
}

// WebhookNotifier posts async results to caller-supplied URLs.
type WebhookNotifier struct {
	client *http.Client
}

// Option configures the notifier.
type Option func(*WebhookNotifier)

// WithTimeout overrides the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(n *WebhookNotifier) {
		if timeout > 0 {
			n.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the http client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *WebhookNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(opts ...Option) *WebhookNotifier {
	n := &WebhookNotifier{client: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts the payload once; delivery is not retried.
func (n *WebhookNotifier) Notify(ctx context.Context, url, kind string, payload any) error {
	if n == nil || url == "" {
		return errors.New("webhook notifier: empty url")
	}
	err := postJSON(ctx, n.client, url, Message{Kind: kind, Delivered: time.Now().UTC(), Result: payload})
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.IncCallback(kind, result)
	return err
}

// EventSink delivers outbox envelopes to a fixed downstream URL.
type EventSink struct {
	url    string
	client *http.Client
}

// NewEventSink constructs a sink.
func NewEventSink(url string, timeout time.Duration) *EventSink {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &EventSink{url: url, client: &http.Client{Timeout: timeout}}
}

// Deliver posts one envelope.
func (s *EventSink) Deliver(ctx context.Context, env eventing.Envelope) error {
	if s == nil || s.url == "" {
		return errors.New("event sink: empty url")
	}
	return postJSON(ctx, s.client, s.url, env)
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: non-2xx status %d", resp.StatusCode)
	}
	return nil
}
