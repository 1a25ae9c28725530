package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// State represents the state of one breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	// StateForcedOpen is an administrative override. The breaker rejects
	// every call until ForceClose is invoked, regardless of outcomes.
	StateForcedOpen State = "forced-open"
	StateUnknown    State = "unknown"
)

// Counts represents breaker statistics for the current closed or half-open window.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Status is the externally visible condition of one breaker.
type Status struct {
	Service         string    `json:"service"`
	State           State     `json:"state"`
	FailureCount    uint32    `json:"failure_count"`
	SuccessCount    uint32    `json:"success_count"`
	LastStateChange time.Time `json:"last_state_change"`
}

// HealthSummary aggregates breaker states across the registry. Failed counts
// breakers currently rejecting calls (open or forced open).
type HealthSummary struct {
	Total      int `json:"total"`
	Closed     int `json:"closed"`
	Open       int `json:"open"`
	HalfOpen   int `json:"half_open"`
	ForcedOpen int `json:"forced_open"`
	Failed     int `json:"failed"`
}

// Operation is a unit of work executed through a breaker.
type Operation func() (any, error)

// StateChangeListener is notified when a breaker changes state. Listeners
// are invoked on background goroutines and must tolerate concurrent calls.
type StateChangeListener interface {
	OnStateChange(service string, from State, to State)
}

// ListenerFunc adapts a function to the StateChangeListener interface.
type ListenerFunc func(service string, from State, to State)

// OnStateChange implements StateChangeListener.
func (f ListenerFunc) OnStateChange(service string, from State, to State) {
	f(service, from, to)
}

func convertState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

func convertCounts(counts gobreaker.Counts) Counts {
	return Counts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}
