package degradation

import (
	"errors"
	"fmt"
	"strings"
)

// State is the health bucket of one tracked service.
type State string

const (
	// StateHealthy means recent operations succeeded and the breaker is
	// not rejecting calls.
	StateHealthy State = "healthy"
	// StateDegraded means the service is failing but a fallback keeps
	// callers functioning with reduced fidelity.
	StateDegraded State = "degraded"
	// StateUnavailable means the service is failing and no usable
	// fallback exists; callers must expect hard failures.
	StateUnavailable State = "unavailable"
)

// ErrInvalidState is returned by ParseState for unrecognized input.
var ErrInvalidState = errors.New("degradation: invalid service state")

// ParseState converts a string into a State, case-insensitively.
// "unhealthy" is accepted as an alias for unavailable so callers using the
// monitoring vocabulary resolve to the same three-state model.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "healthy":
		return StateHealthy, nil
	case "degraded":
		return StateDegraded, nil
	case "unavailable", "unhealthy":
		return StateUnavailable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// severity orders states from best to worst for aggregation.
func (s State) severity() int {
	switch s {
	case StateHealthy:
		return 0
	case StateDegraded:
		return 1
	case StateUnavailable:
		return 2
	default:
		return 1
	}
}

// Worse returns the more severe of two states.
func (s State) Worse(other State) State {
	if other.severity() > s.severity() {
		return other
	}

	return s
}
