// Package events defines the health and breaker lifecycle events emitted by
// the resilience layer, together with best-effort publishers for in-process,
// Redis pub/sub, and webhook delivery.
//
// Delivery is at most once. Publishers never block the code path that
// detected the transition; a slow or failing sink loses events rather than
// degrading the caller.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type names carried on the wire.
const (
	// TypeStateChanged fires whenever a monitored service moves between
	// the healthy, degraded, and unavailable states.
	TypeStateChanged = "health.state.changed"

	// TypeThresholdBreached fires when consecutive probe failures cross
	// the configured alerting threshold.
	TypeThresholdBreached = "health.threshold.breached"

	// TypeRecoveryCompleted fires when a service returns to healthy after
	// a degraded or unavailable period.
	TypeRecoveryCompleted = "health.recovery.completed"

	// TypeBreakerStateChanged fires on circuit breaker state transitions.
	TypeBreakerStateChanged = "circuit.state.changed"
)

// Event is a single lifecycle notification. From and To are state names for
// transition events and empty otherwise.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Service   string         `json:"service"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewStateChanged builds a health.state.changed event.
func NewStateChanged(service, from, to string) Event {
	return newEvent(TypeStateChanged, service, from, to, nil)
}

// NewThresholdBreached builds a health.threshold.breached event.
// consecutiveFailures is the probe failure streak that crossed the threshold.
func NewThresholdBreached(service string, consecutiveFailures, threshold int) Event {
	return newEvent(TypeThresholdBreached, service, "", "", map[string]any{
		"consecutive_failures": consecutiveFailures,
		"threshold":            threshold,
	})
}

// NewRecoveryCompleted builds a health.recovery.completed event carrying the
// total downtime of the recovered service.
func NewRecoveryCompleted(service string, downtime time.Duration) Event {
	return newEvent(TypeRecoveryCompleted, service, "", "", map[string]any{
		"downtime_ms": downtime.Milliseconds(),
	})
}

// NewBreakerStateChanged builds a circuit.state.changed event.
func NewBreakerStateChanged(service, from, to string) Event {
	return newEvent(TypeBreakerStateChanged, service, from, to, nil)
}

func newEvent(eventType, service, from, to string, details map[string]any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Service:   service,
		From:      from,
		To:        to,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}
