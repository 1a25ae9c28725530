package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrEmptyWebhookURL indicates a WebhookPublisher was built without a URL.
var ErrEmptyWebhookURL = errors.New("webhook url cannot be empty")

const defaultWebhookTimeout = 5 * time.Second

// WebhookPublisher POSTs events as JSON to a fixed endpoint, typically an
// alerting bridge. A non-2xx response counts as a failed delivery.
type WebhookPublisher struct {
	url     string
	headers map[string]string
	timeout time.Duration
}

// WebhookOption customizes a WebhookPublisher.
type WebhookOption func(*WebhookPublisher)

// WithWebhookHeader adds a header to every delivery, e.g. an authorization
// token for the receiving endpoint.
func WithWebhookHeader(key, value string) WebhookOption {
	return func(p *WebhookPublisher) {
		p.headers[key] = value
	}
}

// WithWebhookTimeout bounds every delivery attempt.
func WithWebhookTimeout(timeout time.Duration) WebhookOption {
	return func(p *WebhookPublisher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewWebhookPublisher creates a publisher targeting the given URL.
func NewWebhookPublisher(url string, opts ...WebhookOption) (*WebhookPublisher, error) {
	if url == "" {
		return nil, ErrEmptyWebhookURL
	}

	p := &WebhookPublisher{
		url:     url,
		headers: make(map[string]string),
		timeout: defaultWebhookTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Publish implements Publisher.
func (p *WebhookPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Post(p.url)
	agent.Timeout(p.timeout)
	agent.JSON(event)

	for key, value := range p.headers {
		agent.Set(key, value)
	}

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("deliver event %s: %w", event.Type, errors.Join(errs...))
	}

	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("deliver event %s: endpoint returned status %d", event.Type, code)
	}

	return nil
}
