package metrics

// Pre-configured instruments recorded by the resilience layer. Duration
// metrics are in milliseconds.
var (
	// MetricBreakerStateChanges counts circuit breaker state transitions,
	// labeled with service, from_state, and to_state.
	MetricBreakerStateChanges = Metric{
		Name:        "circuit_breaker.state_changes",
		Unit:        "1",
		Description: "Total number of circuit breaker state transitions.",
	}

	// MetricBreakerRecoveryDuration records how long a breaker stayed away
	// from the closed state before recovering.
	MetricBreakerRecoveryDuration = Metric{
		Name:        "circuit_breaker.recovery.duration",
		Unit:        "ms",
		Description: "Time from a breaker leaving the closed state until it closes again.",
	}

	// MetricOperationDuration records protected operation latency, labeled
	// with service and outcome.
	MetricOperationDuration = Metric{
		Name:        "resilience.operation.duration",
		Unit:        "ms",
		Description: "Latency of operations executed through the degradation layer.",
	}

	// MetricFallbackExecutions counts fallback invocations, labeled with
	// service and outcome.
	MetricFallbackExecutions = Metric{
		Name:        "resilience.fallback.executions",
		Unit:        "1",
		Description: "Total number of fallback executions after primary failure.",
	}

	// MetricHealthCheckDuration records dependency probe latency, labeled
	// with service and status.
	MetricHealthCheckDuration = Metric{
		Name:        "health.check.duration",
		Unit:        "ms",
		Description: "Latency of dependency health probes.",
	}

	// MetricServiceAvailability is a gauge of the share of registered
	// services currently healthy, in percent.
	MetricServiceAvailability = Metric{
		Name:        "health.service.availability",
		Unit:        "percentage",
		Description: "Percentage of registered services currently healthy.",
	}
)

// Pre-configured system metrics for infrastructure monitoring.
var (
	// MetricSystemCPUUsage is a gauge that records the current CPU usage percentage.
	MetricSystemCPUUsage = Metric{
		Name:        "system.cpu.usage",
		Unit:        "percentage",
		Description: "Current CPU usage percentage of the process host.",
	}

	// MetricSystemMemUsage is a gauge that records the current memory usage percentage.
	MetricSystemMemUsage = Metric{
		Name:        "system.mem.usage",
		Unit:        "percentage",
		Description: "Current memory usage percentage of the process host.",
	}
)
