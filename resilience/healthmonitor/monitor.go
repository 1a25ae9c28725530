package healthmonitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/circuitbreaker"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/degradation"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/metrics"
)

// ProbeFunc checks one dependency. A nil return means the dependency is
// reachable; anything else, including a panic, counts as a failed probe.
type ProbeFunc func(ctx context.Context) error

var (
	// ErrNilProbe is returned when registering a service without a probe function.
	ErrNilProbe = errors.New("healthmonitor: probe function cannot be nil")

	// ErrMalformedResponse is returned by probes when the dependency answered
	// with an unexpected or empty payload. It counts as an ordinary probe
	// failure.
	ErrMalformedResponse = errors.New("healthmonitor: malformed probe response")
)

// BreakerSource is the registry view the monitor consumes. Implemented by
// *circuitbreaker.Registry.
type BreakerSource interface {
	GetState(service string) circuitbreaker.State
	GetHealthSummary() circuitbreaker.HealthSummary
}

// BucketSource is the degradation view the monitor consumes. Implemented by
// *degradation.Service.
type BucketSource interface {
	GetServiceState(service string) degradation.State
}

type probe struct {
	name     string
	fn       ProbeFunc
	critical bool
}

// ProbeOption customizes a registered probe.
type ProbeOption func(*probe)

// NonCritical marks a probe as non-critical: its failure degrades the
// overall status but never makes it unavailable, and readiness ignores it.
func NonCritical() ProbeOption {
	return func(p *probe) {
		p.critical = false
	}
}

// Monitor periodically polls registered probes, merges the results with the
// breaker registry and the degradation buckets, and publishes an immutable
// SystemHealthSnapshot. It never reports a service healthier than any of
// its three information sources.
//
// Monitor implements circuitbreaker.StateChangeListener: a breaker
// transition schedules an immediate check cycle so the snapshot reflects
// the trip without waiting for the next tick.
type Monitor struct {
	breakers BreakerSource
	buckets  BucketSource
	logger   log.Logger
	metrics  *metrics.Factory

	mu      sync.RWMutex
	probes  map[string]*probe
	deps    map[string][]string
	cfg     Config
	running bool

	snapshot       atomic.Pointer[Snapshot]
	startedAt      time.Time
	stopChan       chan struct{}
	immediateCheck chan struct{}
	wg             sync.WaitGroup
}

// MonitorOption customizes a Monitor.
type MonitorOption func(*Monitor)

// WithMetrics attaches an instrument factory recording probe durations and
// the availability gauge.
func WithMetrics(factory *metrics.Factory) MonitorOption {
	return func(m *Monitor) {
		m.metrics = factory
	}
}

// WithConfig applies an initial configuration. Invalid configs are ignored
// in favor of the defaults.
func WithConfig(cfg Config) MonitorOption {
	return func(m *Monitor) {
		if cfg.Validate() == nil {
			m.cfg = cfg
		}
	}
}

// NewMonitor creates a monitor over the given sources. Either source may be
// nil when the corresponding component is not in use.
func NewMonitor(breakers BreakerSource, buckets BucketSource, logger log.Logger, opts ...MonitorOption) *Monitor {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	m := &Monitor{
		breakers:       breakers,
		buckets:        buckets,
		logger:         logger,
		metrics:        metrics.NewNopFactory(),
		probes:         make(map[string]*probe),
		deps:           make(map[string][]string),
		cfg:            DefaultConfig(),
		startedAt:      time.Now().UTC(),
		immediateCheck: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(m)
	}

	// When the breaker source supports listeners, subscribe so breaker
	// trips refresh the snapshot immediately.
	if registrar, ok := breakers.(listenerRegistrar); ok {
		registrar.RegisterStateChangeListener(m)
	}

	return m
}

// listenerRegistrar is the optional breaker-source capability the monitor
// subscribes to. Satisfied by *circuitbreaker.Registry.
type listenerRegistrar interface {
	RegisterStateChangeListener(circuitbreaker.StateChangeListener)
}

// OnStateChange implements circuitbreaker.StateChangeListener. The signal is
// dropped when an immediate check is already pending.
func (m *Monitor) OnStateChange(service string, from, to circuitbreaker.State) {
	m.logger.Infof("breaker for %s moved %s to %s, scheduling immediate health check", service, from, to)
	m.scheduleImmediateCheck()
}

func (m *Monitor) scheduleImmediateCheck() {
	select {
	case m.immediateCheck <- struct{}{}:
	default:
	}
}

// Register adds a service probe. Probes are critical unless NonCritical is
// supplied. Re-registering a service replaces its probe.
func (m *Monitor) Register(service string, fn ProbeFunc, opts ...ProbeOption) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNilProbe, service)
	}

	p := &probe{name: service, fn: fn, critical: true}
	for _, opt := range opts {
		opt(p)
	}

	m.mu.Lock()
	m.probes[service] = p
	m.mu.Unlock()

	m.logger.Infof("registered health probe for service %s", service)

	return nil
}

// RegisterDependency declares that dependent relies on dependency. When the
// dependency is not healthy the dependent is reported at least degraded,
// even if its own probe succeeds.
func (m *Monitor) RegisterDependency(dependent, dependency string) {
	m.mu.Lock()
	m.deps[dependent] = append(m.deps[dependent], dependency)
	m.mu.Unlock()
}

// ApplyConfig swaps the scheduling configuration. Invalid configurations
// are rejected and the last known good configuration stays active. A running
// loop picks up the new interval immediately.
func (m *Monitor) ApplyConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		m.logger.Warnf("rejecting invalid monitor configuration: %v", err)

		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	m.scheduleImmediateCheck()

	return nil
}

// Start begins the polling loop. Starting an already running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}

	m.running = true
	m.stopChan = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	m.wg.Add(1)

	go m.loop()

	m.logger.Infof("health monitor started, polling every %v", interval)
}

// Stop terminates the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}

	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("health monitor stopped")
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.mu.RLock()
	stopChan := m.stopChan
	m.mu.RUnlock()

	// Publish a first snapshot immediately so readers do not wait a full
	// interval after startup.
	m.runCycle(context.Background())

	// The timer is re-armed from the current configuration after every
	// cycle, so ApplyConfig changes the cadence without a restart.
	timer := time.NewTimer(m.interval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			m.runCycle(context.Background())
		case <-m.immediateCheck:
			m.runCycle(context.Background())

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-stopChan:
			return
		}

		timer.Reset(m.interval())
	}
}

func (m *Monitor) interval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cfg.Interval
}

// GetSystemHealth returns the latest published snapshot, running a
// synchronous cycle when none has been published yet.
func (m *Monitor) GetSystemHealth(ctx context.Context) *Snapshot {
	if snapshot := m.snapshot.Load(); snapshot != nil {
		return snapshot
	}

	return m.runCycle(ctx)
}

// ForceHealthCheck re-evaluates all probes synchronously, bypassing the
// timer cadence, and returns the fresh snapshot.
func (m *Monitor) ForceHealthCheck(ctx context.Context) *Snapshot {
	return m.runCycle(ctx)
}

// CheckLiveness answers whether the process is running. It never consults
// dependency health.
func (m *Monitor) CheckLiveness() Liveness {
	m.mu.RLock()
	version := m.cfg.Version
	m.mu.RUnlock()

	return Liveness{
		Status:        LivenessAlive,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
		Version:       version,
	}
}

// CheckReadiness answers whether the process should receive traffic: ready
// unless a critical dependency is unavailable.
func (m *Monitor) CheckReadiness(ctx context.Context) Readiness {
	snapshot := m.GetSystemHealth(ctx)

	m.mu.RLock()
	criticals := make(map[string]bool, len(m.probes))
	for name, p := range m.probes {
		criticals[name] = p.critical
	}
	m.mu.RUnlock()

	dependencies := make(map[string]bool, len(snapshot.Checks))
	ready := true

	for _, check := range snapshot.Checks {
		ok := check.Status != degradation.StateUnavailable
		dependencies[check.Service] = ok

		if !ok && criticals[check.Service] {
			ready = false
		}
	}

	status := ReadinessReady
	if !ready {
		status = ReadinessNotReady
	}

	return Readiness{
		Status:       status,
		Timestamp:    time.Now().UTC(),
		Dependencies: dependencies,
		Services:     snapshot.Checks,
	}
}

type probeResult struct {
	service  string
	err      error
	duration time.Duration
	timedOut bool
}

// runCycle probes every registered service concurrently, merges the
// results, and atomically publishes a fresh snapshot. The cycle has a soft
// deadline: probes that have not settled by then are reported as timed out
// and the snapshot ships with partial results.
func (m *Monitor) runCycle(ctx context.Context) *Snapshot {
	started := time.Now()

	m.mu.RLock()
	probes := make([]*probe, 0, len(m.probes))
	for _, p := range m.probes {
		probes = append(probes, p)
	}

	deps := make(map[string][]string, len(m.deps))
	for dependent, dependencies := range m.deps {
		deps[dependent] = append([]string(nil), dependencies...)
	}

	probeTimeout := m.cfg.ProbeTimeout
	cycleDeadline := m.cfg.CycleDeadline
	m.mu.RUnlock()

	resultCh := make(chan probeResult, len(probes))

	for _, p := range probes {
		go func(p *probe) {
			probeStarted := time.Now()
			err := m.runProbe(ctx, p, probeTimeout)

			resultCh <- probeResult{
				service:  p.name,
				err:      err,
				duration: time.Since(probeStarted),
				timedOut: errors.Is(err, context.DeadlineExceeded),
			}
		}(p)
	}

	results := make(map[string]probeResult, len(probes))
	deadline := time.NewTimer(cycleDeadline)

	defer deadline.Stop()

collect:
	for range probes {
		select {
		case result := <-resultCh:
			results[result.service] = result
		case <-deadline.C:
			break collect
		}
	}

	checks := m.buildChecks(probes, results)
	propagateDependencies(checks, deps)

	overall := m.aggregate(probes, checks)

	snapshot := &Snapshot{
		OverallStatus: overall,
		Checks:        sortedChecks(checks),
		Resources:     sampleResources(ctx),
		DurationMs:    time.Since(started).Milliseconds(),
		Timestamp:     time.Now().UTC(),
	}

	if m.breakers != nil {
		snapshot.Breakers = m.breakers.GetHealthSummary()
	}

	m.snapshot.Store(snapshot)
	m.recordCycle(ctx, snapshot)

	return snapshot
}

// runProbe executes one probe with its own timeout, containing panics.
func (m *Monitor) runProbe(ctx context.Context, p *probe, timeout time.Duration) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("probe for %s panicked: %v", p.name, r)
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()

	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("probe panic: %v", r)
			}
		}()

		done <- p.fn(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case probeErr := <-done:
		return probeErr
	}
}

// buildChecks folds probe outcome, breaker state, and degradation bucket
// into one status per service, taking the worst of the three sources.
func (m *Monitor) buildChecks(probes []*probe, results map[string]probeResult) map[string]*Check {
	checks := make(map[string]*Check, len(probes))

	for _, p := range probes {
		check := &Check{Service: p.name, Status: degradation.StateHealthy}

		result, settled := results[p.name]

		switch {
		case !settled:
			check.Status = degradation.StateUnavailable
			check.TimedOut = true
			check.Error = "probe did not settle before the cycle deadline"
		case result.err != nil:
			check.Status = degradation.StateUnavailable
			check.TimedOut = result.timedOut
			check.Error = result.err.Error()
			check.ResponseTimeMs = result.duration.Milliseconds()
		default:
			check.ResponseTimeMs = result.duration.Milliseconds()
		}

		if m.breakers != nil {
			check.CircuitState = m.breakers.GetState(p.name)

			switch check.CircuitState {
			case circuitbreaker.StateOpen, circuitbreaker.StateForcedOpen:
				check.Status = degradation.StateUnavailable
			case circuitbreaker.StateHalfOpen:
				check.Status = check.Status.Worse(degradation.StateDegraded)
			}
		}

		if m.buckets != nil {
			check.Status = check.Status.Worse(m.buckets.GetServiceState(p.name))
		}

		checks[p.name] = check
	}

	return checks
}

// propagateDependencies marks dependents of non-healthy services at least
// degraded. Passes repeat until the statuses stabilize so chains propagate.
func propagateDependencies(checks map[string]*Check, deps map[string][]string) {
	for i := 0; i < len(checks); i++ {
		changed := false

		for dependent, dependencies := range deps {
			check, tracked := checks[dependent]
			if !tracked {
				continue
			}

			for _, dependency := range dependencies {
				depCheck, known := checks[dependency]
				if !known || depCheck.Status == degradation.StateHealthy {
					continue
				}

				if check.Status == degradation.StateHealthy {
					check.Status = degradation.StateDegraded
					changed = true
				}
			}
		}

		if !changed {
			return
		}
	}
}

// aggregate classifies the overall status: unavailable when any critical
// service is unavailable, degraded when anything is not healthy, healthy
// otherwise.
func (m *Monitor) aggregate(probes []*probe, checks map[string]*Check) degradation.State {
	criticals := make(map[string]bool, len(probes))
	for _, p := range probes {
		criticals[p.name] = p.critical
	}

	overall := degradation.StateHealthy

	for service, check := range checks {
		switch {
		case check.Status == degradation.StateUnavailable && criticals[service]:
			overall = degradation.StateUnavailable
		case check.Status != degradation.StateHealthy:
			overall = overall.Worse(degradation.StateDegraded)
		}
	}

	return overall
}

func sortedChecks(checks map[string]*Check) []Check {
	ordered := make([]Check, 0, len(checks))
	for _, check := range checks {
		ordered = append(ordered, *check)
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Service < ordered[j].Service
	})

	return ordered
}

// sampleResources reads host gauges best effort; a failed sample reports
// zeros rather than failing the cycle.
func sampleResources(ctx context.Context) Resources {
	var resources Resources

	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		resources.CPUPercent = percentages[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resources.MemoryPercent = vm.UsedPercent
	}

	return resources
}

func (m *Monitor) recordCycle(ctx context.Context, snapshot *Snapshot) {
	if histogram, err := m.metrics.Histogram(metrics.MetricHealthCheckDuration); err == nil {
		for _, check := range snapshot.Checks {
			_ = histogram.WithLabels(map[string]string{
				"service": check.Service,
				"status":  string(check.Status),
			}).Record(ctx, check.ResponseTimeMs)
		}
	}

	if len(snapshot.Checks) == 0 {
		return
	}

	healthy := 0

	for _, check := range snapshot.Checks {
		if check.Status == degradation.StateHealthy {
			healthy++
		}
	}

	if gauge, err := m.metrics.Gauge(metrics.MetricServiceAvailability); err == nil {
		_ = gauge.Set(ctx, int64(healthy*100/len(snapshot.Checks)))
	}
}
