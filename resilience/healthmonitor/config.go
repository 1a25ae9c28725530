package healthmonitor

import (
	"errors"
	"time"
)

var (
	// ErrInvalidInterval indicates the polling interval must be positive.
	ErrInvalidInterval = errors.New("healthmonitor: polling interval must be positive")

	// ErrInvalidProbeTimeout indicates the per-probe timeout must be positive.
	ErrInvalidProbeTimeout = errors.New("healthmonitor: probe timeout must be positive")

	// ErrInvalidCycleDeadline indicates the cycle deadline must be at least
	// the probe timeout; otherwise every cycle would cut probes short.
	ErrInvalidCycleDeadline = errors.New("healthmonitor: cycle deadline must be at least the probe timeout")
)

// Config holds the monitor's scheduling tunables. Apply it with
// Monitor.ApplyConfig; invalid configs are rejected and the last known good
// configuration stays active.
type Config struct {
	// Interval between polling cycles.
	Interval time.Duration

	// ProbeTimeout bounds each individual probe.
	ProbeTimeout time.Duration

	// CycleDeadline is the soft cap for a full cycle. Probes that have not
	// settled by then are reported as timed out and the snapshot is
	// published with partial results.
	CycleDeadline time.Duration

	// Version is reported by the liveness probe.
	Version string
}

// DefaultConfig returns production-scale scheduling defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      30 * time.Second,
		ProbeTimeout:  5 * time.Second,
		CycleDeadline: 15 * time.Second,
		Version:       "dev",
	}
}

// Validate reports the first invalid field, or nil.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}

	if c.ProbeTimeout <= 0 {
		return ErrInvalidProbeTimeout
	}

	if c.CycleDeadline < c.ProbeTimeout {
		return ErrInvalidCycleDeadline
	}

	return nil
}
