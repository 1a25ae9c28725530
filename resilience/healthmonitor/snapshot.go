package healthmonitor

import (
	"time"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/circuitbreaker"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/degradation"
)

// Check is one service's merged view inside a snapshot: probe outcome,
// breaker state, and degradation bucket folded into a single status.
type Check struct {
	Service        string               `json:"service"`
	Status         degradation.State    `json:"status"`
	CircuitState   circuitbreaker.State `json:"circuit_state,omitempty"`
	ResponseTimeMs int64                `json:"response_time_ms"`
	TimedOut       bool                 `json:"timed_out,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// Resources carries opaque host gauges sampled during the cycle.
type Resources struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// Snapshot is an immutable point-in-time aggregate of system health.
// Callers receive a fresh snapshot per request and must not mutate it.
type Snapshot struct {
	OverallStatus degradation.State            `json:"overall_status"`
	Checks        []Check                      `json:"checks"`
	Breakers      circuitbreaker.HealthSummary `json:"circuit_breakers"`
	Resources     Resources                    `json:"resources"`
	DurationMs    int64                        `json:"duration_ms"`
	Timestamp     time.Time                    `json:"timestamp"`
}

// Liveness answers whether the process is running. It never reflects
// dependency health.
type Liveness struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Version       string    `json:"version"`
}

// Readiness answers whether the process should receive traffic.
type Readiness struct {
	Status       string          `json:"status"`
	Timestamp    time.Time       `json:"timestamp"`
	Dependencies map[string]bool `json:"dependencies"`
	Services     []Check         `json:"services"`
}

// Probe status values reported by CheckLiveness and CheckReadiness.
const (
	ReadinessReady    = "ready"
	ReadinessNotReady = "not_ready"
	LivenessAlive     = "alive"
)
