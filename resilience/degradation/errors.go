package degradation

import "errors"

var (
	// ErrOperationTimeout is returned when a wrapped operation exceeds its
	// deadline. It counts as an ordinary failure for breaker and health
	// bookkeeping.
	ErrOperationTimeout = errors.New("degradation: operation timed out")

	// ErrNoFallback is wrapped around the original failure when it is
	// surfaced to the caller because no fallback was configured.
	ErrNoFallback = errors.New("degradation: no fallback configured")

	// ErrFallbackFailed is wrapped around the original failure when the
	// configured fallback itself failed.
	ErrFallbackFailed = errors.New("degradation: fallback failed")

	// ErrInvalidTimeout indicates a non-positive operation timeout.
	ErrInvalidTimeout = errors.New("degradation: operation timeout must be positive")

	// ErrInvalidMaxRetries indicates a negative retry count.
	ErrInvalidMaxRetries = errors.New("degradation: max retries cannot be negative")

	// ErrInvalidRecoveryWindow indicates a non-positive recovery window.
	ErrInvalidRecoveryWindow = errors.New("degradation: recovery window must be positive")

	// ErrInvalidAlertThreshold indicates a non-positive alert threshold.
	ErrInvalidAlertThreshold = errors.New("degradation: alert threshold must be positive")

	// ErrAmbiguousFallback indicates both static data and a function were
	// configured on the same fallback.
	ErrAmbiguousFallback = errors.New("degradation: fallback data and fallback function are mutually exclusive")
)
