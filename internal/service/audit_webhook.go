package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/spec-kit/hotel-booking/internal/config"
	"github.com/spec-kit/hotel-booking/internal/events"
)

// WebhookSender delivers one audit event to an external receiver.
type WebhookSender interface {
	Send(ctx context.Context, event events.Event) error
}

// HTTPWebhook POSTs events as JSON. Transport errors, 429 and 5xx responses are
// retried with exponential backoff; other non-2xx responses fail at once.
type HTTPWebhook struct {
	url        string
	client     *http.Client
	maxRetries uint64
	retryBase  time.Duration
}

// NewHTTPWebhook builds a sender for cfg.WebhookURL.
func NewHTTPWebhook(cfg config.AuditConfig) *HTTPWebhook {
	retries := cfg.WebhookMaxRetries
	if retries < 0 {
		retries = 0
	}
	return &HTTPWebhook{
		url: cfg.WebhookURL,
		client: &http.Client{
			Timeout: cfg.WebhookTimeout(),
		},
		maxRetries: uint64(retries),
		retryBase:  cfg.WebhookRetryBase(),
	}
}

func (w *HTTPWebhook) Send(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	backoff := retry.WithMaxRetries(w.maxRetries, retry.NewExponential(w.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return w.post(ctx, body)
	})
}

func (w *HTTPWebhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build audit webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("audit webhook request failed: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("audit webhook returned status %d", resp.StatusCode))
	default:
		return fmt.Errorf("audit webhook returned status %d", resp.StatusCode)
	}
}
