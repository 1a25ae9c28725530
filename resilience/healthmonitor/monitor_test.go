package healthmonitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/circuitbreaker"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/degradation"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

var errProbeFailed = errors.New("probe failed")

func testMonitorConfig() Config {
	return Config{
		Interval:      50 * time.Millisecond,
		ProbeTimeout:  50 * time.Millisecond,
		CycleDeadline: 200 * time.Millisecond,
		Version:       "test",
	}
}

func healthyProbe(context.Context) error { return nil }

func newTestMonitor(t *testing.T) (*Monitor, *circuitbreaker.Registry, *degradation.Service) {
	t.Helper()

	registry := circuitbreaker.NewRegistry(&log.NoneLogger{})
	buckets := degradation.NewService(registry, &log.NoneLogger{})

	monitor := NewMonitor(registry, buckets, &log.NoneLogger{}, WithConfig(testMonitorConfig()))

	return monitor, registry, buckets
}

func findCheck(t *testing.T, snapshot *Snapshot, service string) Check {
	t.Helper()

	for _, check := range snapshot.Checks {
		if check.Service == service {
			return check
		}
	}

	t.Fatalf("no check for service %s in snapshot", service)

	return Check{}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := testMonitorConfig()
	cfg.Interval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInterval)

	cfg = testMonitorConfig()
	cfg.ProbeTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidProbeTimeout)

	cfg = testMonitorConfig()
	cfg.CycleDeadline = cfg.ProbeTimeout / 2
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidCycleDeadline)
}

func TestRegister_NilProbe(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	assert.ErrorIs(t, monitor.Register("database", nil), ErrNilProbe)
}

func TestForceHealthCheck_AllHealthy(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", healthyProbe))
	require.NoError(t, monitor.Register("redis", healthyProbe))

	snapshot := monitor.ForceHealthCheck(context.Background())

	assert.Equal(t, degradation.StateHealthy, snapshot.OverallStatus)
	require.Len(t, snapshot.Checks, 2)
	assert.Equal(t, "database", snapshot.Checks[0].Service)
	assert.Equal(t, "redis", snapshot.Checks[1].Service)
	assert.False(t, snapshot.Timestamp.IsZero())
}

func TestForceHealthCheck_CriticalProbeFailure(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", func(context.Context) error {
		return errProbeFailed
	}))
	require.NoError(t, monitor.Register("redis", healthyProbe))

	snapshot := monitor.ForceHealthCheck(context.Background())

	assert.Equal(t, degradation.StateUnavailable, snapshot.OverallStatus)

	database := findCheck(t, snapshot, "database")
	assert.Equal(t, degradation.StateUnavailable, database.Status)
	assert.Equal(t, errProbeFailed.Error(), database.Error)

	// The healthy service stays isolated.
	assert.Equal(t, degradation.StateHealthy, findCheck(t, snapshot, "redis").Status)
}

func TestForceHealthCheck_MalformedResponseIsProbeFailure(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("payments", func(context.Context) error {
		return fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}))

	snapshot := monitor.ForceHealthCheck(context.Background())

	payments := findCheck(t, snapshot, "payments")
	assert.Equal(t, degradation.StateUnavailable, payments.Status)
	assert.Contains(t, payments.Error, "malformed probe response")

	// The monitor keeps cycling after a malformed response.
	assert.NotNil(t, monitor.ForceHealthCheck(context.Background()))
}

func TestForceHealthCheck_NonCriticalFailureOnlyDegrades(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("email", func(context.Context) error {
		return errProbeFailed
	}, NonCritical()))
	require.NoError(t, monitor.Register("database", healthyProbe))

	snapshot := monitor.ForceHealthCheck(context.Background())

	assert.Equal(t, degradation.StateDegraded, snapshot.OverallStatus)
}

func TestForceHealthCheck_OpenBreakerOverridesHealthyProbe(t *testing.T) {
	monitor, registry, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("payment-gateway", healthyProbe))
	registry.ForceOpen("payment-gateway")

	snapshot := monitor.ForceHealthCheck(context.Background())

	check := findCheck(t, snapshot, "payment-gateway")
	assert.Equal(t, degradation.StateUnavailable, check.Status)
	assert.Equal(t, circuitbreaker.StateForcedOpen, check.CircuitState)
	assert.Equal(t, 1, snapshot.Breakers.ForcedOpen)
}

func TestForceHealthCheck_DegradedBucketOverridesHealthyProbe(t *testing.T) {
	monitor, _, buckets := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", healthyProbe))
	buckets.SetServiceState("database", degradation.StateDegraded)

	snapshot := monitor.ForceHealthCheck(context.Background())

	assert.Equal(t, degradation.StateDegraded, findCheck(t, snapshot, "database").Status)
	assert.Equal(t, degradation.StateDegraded, snapshot.OverallStatus)
}

func TestForceHealthCheck_DependencyChainPropagates(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", func(context.Context) error {
		return errProbeFailed
	}))
	require.NoError(t, monitor.Register("orders", healthyProbe))
	require.NoError(t, monitor.Register("reports", healthyProbe))

	monitor.RegisterDependency("orders", "database")
	monitor.RegisterDependency("reports", "orders")

	snapshot := monitor.ForceHealthCheck(context.Background())

	assert.Equal(t, degradation.StateUnavailable, findCheck(t, snapshot, "database").Status)
	assert.Equal(t, degradation.StateDegraded, findCheck(t, snapshot, "orders").Status)
	assert.Equal(t, degradation.StateDegraded, findCheck(t, snapshot, "reports").Status, "degradation propagates through the chain")
}

func TestForceHealthCheck_Idempotent(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", healthyProbe))
	require.NoError(t, monitor.Register("redis", healthyProbe))

	first := monitor.ForceHealthCheck(context.Background())
	second := monitor.ForceHealthCheck(context.Background())

	require.Len(t, second.Checks, len(first.Checks))

	for i := range first.Checks {
		assert.Equal(t, first.Checks[i].Service, second.Checks[i].Service)
		assert.Equal(t, first.Checks[i].Status, second.Checks[i].Status)
		assert.Equal(t, first.Checks[i].Error, second.Checks[i].Error)
	}
}

func TestForceHealthCheck_HangingProbeReportedAsTimeout(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, monitor.Register("database", healthyProbe))

	started := time.Now()
	snapshot := monitor.ForceHealthCheck(context.Background())

	assert.Less(t, time.Since(started), time.Second, "cycle must settle within the deadline")

	stuck := findCheck(t, snapshot, "stuck")
	assert.Equal(t, degradation.StateUnavailable, stuck.Status)
	assert.True(t, stuck.TimedOut)

	assert.Equal(t, degradation.StateHealthy, findCheck(t, snapshot, "database").Status)
}

func TestForceHealthCheck_PanickingProbeIsContained(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("flaky", func(context.Context) error {
		panic("probe exploded")
	}))

	snapshot := monitor.ForceHealthCheck(context.Background())

	check := findCheck(t, snapshot, "flaky")
	assert.Equal(t, degradation.StateUnavailable, check.Status)
	assert.Contains(t, check.Error, "probe panic")
}

func TestApplyConfig_KeepsLastKnownGood(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	good := testMonitorConfig()
	good.Version = "v2"
	require.NoError(t, monitor.ApplyConfig(good))

	bad := testMonitorConfig()
	bad.Version = "v3"
	bad.Interval = -time.Second

	require.ErrorIs(t, monitor.ApplyConfig(bad), ErrInvalidInterval)
	assert.Equal(t, "v2", monitor.CheckLiveness().Version, "rejected config must not replace the active one")
}

func TestCheckLiveness(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	liveness := monitor.CheckLiveness()

	assert.Equal(t, "alive", liveness.Status)
	assert.GreaterOrEqual(t, liveness.UptimeSeconds, int64(0))
	assert.Equal(t, "test", liveness.Version)
}

func TestCheckReadiness(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", healthyProbe))
	require.NoError(t, monitor.Register("email", func(context.Context) error {
		return errProbeFailed
	}, NonCritical()))

	monitor.ForceHealthCheck(context.Background())
	readiness := monitor.CheckReadiness(context.Background())

	assert.Equal(t, "ready", readiness.Status, "non-critical failures do not block readiness")
	assert.True(t, readiness.Dependencies["database"])
	assert.False(t, readiness.Dependencies["email"])
}

func TestCheckReadiness_CriticalFailureBlocks(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", func(context.Context) error {
		return errProbeFailed
	}))

	monitor.ForceHealthCheck(context.Background())

	assert.Equal(t, "not_ready", monitor.CheckReadiness(context.Background()).Status)
}

func TestBreakerTransition_TriggersImmediateCheck(t *testing.T) {
	registry := circuitbreaker.NewRegistry(&log.NoneLogger{})
	buckets := degradation.NewService(registry, &log.NoneLogger{})

	// With an hour-long interval only an immediate check can refresh the
	// snapshot during the test.
	cfg := testMonitorConfig()
	cfg.Interval = time.Hour

	monitor := NewMonitor(registry, buckets, &log.NoneLogger{}, WithConfig(cfg))
	require.NoError(t, monitor.Register("database", healthyProbe))

	databaseStatus := func() degradation.State {
		snapshot := monitor.snapshot.Load()
		if snapshot == nil {
			return ""
		}

		for _, check := range snapshot.Checks {
			if check.Service == "database" {
				return check.Status
			}
		}

		return ""
	}

	monitor.Start()
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return databaseStatus() == degradation.StateHealthy
	}, time.Second, 10*time.Millisecond)

	// NewMonitor subscribed the monitor to the registry, so the forced-open
	// transition shows up without waiting for the timer.
	require.NoError(t, registry.GetOrCreate("database", circuitbreaker.DatabaseConfig()))
	registry.ForceOpen("database")

	require.Eventually(t, func() bool {
		return databaseStatus() == degradation.StateUnavailable
	}, time.Second, 10*time.Millisecond)
}

func TestApplyConfig_ReArmsRunningLoop(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", healthyProbe))

	slow := testMonitorConfig()
	slow.Interval = time.Hour
	require.NoError(t, monitor.ApplyConfig(slow))

	monitor.Start()
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return monitor.snapshot.Load() != nil
	}, time.Second, 10*time.Millisecond)

	fast := testMonitorConfig()
	fast.Interval = 20 * time.Millisecond
	require.NoError(t, monitor.ApplyConfig(fast))

	first := monitor.snapshot.Load().Timestamp

	require.Eventually(t, func() bool {
		return monitor.snapshot.Load().Timestamp.After(first)
	}, time.Second, 10*time.Millisecond)

	// A second advance proves the timer was re-armed to the fast interval,
	// not just kicked once by the config change.
	second := monitor.snapshot.Load().Timestamp

	require.Eventually(t, func() bool {
		return monitor.snapshot.Load().Timestamp.After(second)
	}, time.Second, 10*time.Millisecond)
}

func TestStartStop_PublishesSnapshots(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	require.NoError(t, monitor.Register("database", healthyProbe))

	monitor.Start()
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		snapshot := monitor.snapshot.Load()
		return snapshot != nil && len(snapshot.Checks) == 1
	}, time.Second, 10*time.Millisecond)

	monitor.Stop()

	// Stop is idempotent and a second Start works after it.
	monitor.Stop()
	monitor.Start()
	monitor.Stop()
}
