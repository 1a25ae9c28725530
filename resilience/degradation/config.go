package degradation

import (
	"context"
	"time"
)

// Default tunables applied to services that are tracked without explicit
// registration.
const (
	DefaultTimeout        = 5 * time.Second
	DefaultMaxRetries     = 2
	DefaultRecoveryWindow = 15
	DefaultAlertThreshold = 3
)

// ServiceConfig holds the per-service tunables of the degradation layer.
type ServiceConfig struct {
	// Critical services pull the overall status to unavailable when they
	// are unavailable. Non-critical services only degrade it.
	Critical bool

	// Timeout bounds every attempt of a wrapped operation.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first
	// failure. Rejections from an open breaker are never retried.
	MaxRetries int

	// RecoveryWindow is the number of consecutive successes a degraded or
	// unavailable service needs before it is considered healthy again.
	RecoveryWindow int

	// AlertThreshold is the consecutive failure count at which a
	// threshold-breach event fires.
	AlertThreshold int
}

// DefaultServiceConfig returns the tunables applied to implicitly tracked
// services. Services are critical unless registered otherwise.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Critical:       true,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		RecoveryWindow: DefaultRecoveryWindow,
		AlertThreshold: DefaultAlertThreshold,
	}
}

// Validate reports the first invalid field, or nil.
func (c ServiceConfig) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if c.RecoveryWindow <= 0 {
		return ErrInvalidRecoveryWindow
	}

	if c.AlertThreshold <= 0 {
		return ErrInvalidAlertThreshold
	}

	return nil
}

// CallOption overrides per-service settings for a single Execute call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout    *time.Duration
	maxRetries *int
	fallback   *Fallback
}

// WithTimeout bounds each attempt of this call.
func WithTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = &timeout
	}
}

// WithMaxRetries overrides the retry budget for this call.
func WithMaxRetries(maxRetries int) CallOption {
	return func(o *callOptions) {
		o.maxRetries = &maxRetries
	}
}

// WithFallbackData substitutes a static value when this call fails.
func WithFallbackData(data any) CallOption {
	return func(o *callOptions) {
		o.fallback = StaticFallback(data)
	}
}

// WithFallbackFunc substitutes the result of fn when this call fails.
func WithFallbackFunc(fn func(ctx context.Context) (any, error)) CallOption {
	return func(o *callOptions) {
		o.fallback = FuncFallback(fn)
	}
}
