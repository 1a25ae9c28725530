package circuitbreaker

import "errors"

var (
	// ErrCircuitOpen is returned when a call is rejected without executing
	// because the breaker is open, forced open, or out of half-open trial
	// quota. Callers match it with errors.Is.
	ErrCircuitOpen = errors.New("circuitbreaker: circuit is open")

	// ErrBreakerNotFound is returned by lookups for a service that has no
	// breaker yet.
	ErrBreakerNotFound = errors.New("circuitbreaker: no breaker registered for service")

	// ErrInvalidFailureThreshold indicates the failure threshold must be positive.
	ErrInvalidFailureThreshold = errors.New("circuitbreaker: failure threshold must be positive")

	// ErrInvalidOpenDuration indicates the open cooldown must be positive.
	ErrInvalidOpenDuration = errors.New("circuitbreaker: open duration must be positive")

	// ErrInvalidHalfOpenTrials indicates the half-open trial quota must be positive.
	ErrInvalidHalfOpenTrials = errors.New("circuitbreaker: half-open trial count must be positive")

	// ErrInvalidFailureRatio indicates the failure ratio must be within (0, 1].
	ErrInvalidFailureRatio = errors.New("circuitbreaker: failure ratio must be within (0, 1]")
)
