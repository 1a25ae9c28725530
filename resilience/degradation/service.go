package degradation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/backoff"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/circuitbreaker"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/events"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/metrics"
)

// Operation is a unit of work against one dependency. Implementations must
// honor ctx cancellation; the degradation layer additionally enforces a
// hard deadline around every attempt.
type Operation func(ctx context.Context) (any, error)

// BreakerRegistry is the breaker capability the degradation layer consumes.
// Implemented by *circuitbreaker.Registry.
type BreakerRegistry interface {
	Call(ctx context.Context, service string, fn circuitbreaker.Operation) (any, error)
	GetState(service string) circuitbreaker.State
	GetHealthSummary() circuitbreaker.HealthSummary
}

// ServiceHealth is the per-service entry of a SystemHealth view.
type ServiceHealth struct {
	Service             string               `json:"service"`
	Status              State                `json:"status"`
	Critical            bool                 `json:"critical"`
	CircuitState        circuitbreaker.State `json:"circuit_state"`
	Maintenance         bool                 `json:"maintenance,omitempty"`
	ConsecutiveFailures int                  `json:"consecutive_failures,omitempty"`
	LastError           string               `json:"last_error,omitempty"`
	LastTransition      time.Time            `json:"last_transition"`
}

// SystemHealth aggregates every tracked service into one view.
type SystemHealth struct {
	OverallStatus State                        `json:"overall_status"`
	Services      []ServiceHealth              `json:"services"`
	Summary       circuitbreaker.HealthSummary `json:"circuit_breakers"`
	Timestamp     time.Time                    `json:"timestamp"`
}

// serviceEntry is the mutable per-service record. Each entry carries its
// own lock so concurrent Execute calls against different services never
// serialize on shared state.
type serviceEntry struct {
	mu                   sync.Mutex
	name                 string
	cfg                  ServiceConfig
	state                State
	consecutiveSuccesses int
	consecutiveFailures  int
	downSince            time.Time
	lastTransition       time.Time
	lastError            string
	fallback             *Fallback
	maintenance          bool
}

// Service executes operations against unreliable dependencies with breaker
// consultation, timeout, retry, and fallback substitution, while tracking a
// health bucket per dependency.
type Service struct {
	registry BreakerRegistry
	logger   log.Logger
	metrics  *metrics.Factory
	notifier *events.Notifier
	policy   backoff.Policy
	defaults ServiceConfig

	mu      sync.RWMutex
	entries map[string]*serviceEntry
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics attaches an instrument factory recording operation durations
// and fallback executions.
func WithMetrics(factory *metrics.Factory) Option {
	return func(s *Service) {
		s.metrics = factory
	}
}

// WithEventPublisher attaches a publisher for lifecycle events. Delivery is
// asynchronous and best effort.
func WithEventPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.notifier = events.NewNotifier(publisher, s.logger)
	}
}

// WithRetryPolicy overrides the backoff applied between retry attempts.
func WithRetryPolicy(policy backoff.Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithDefaults overrides the config applied to implicitly tracked services.
// Invalid configs are ignored in favor of the built-in defaults.
func WithDefaults(cfg ServiceConfig) Option {
	return func(s *Service) {
		if cfg.Validate() == nil {
			s.defaults = cfg
		}
	}
}

// NewService creates a degradation service over the given breaker registry.
func NewService(registry BreakerRegistry, logger log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	s := &Service{
		registry: registry,
		logger:   logger,
		metrics:  metrics.NewNopFactory(),
		policy:   backoff.DefaultPolicy(),
		defaults: DefaultServiceConfig(),
		entries:  make(map[string]*serviceEntry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register tracks a service with explicit settings. Registering an already
// tracked service replaces its settings but keeps its health history.
func (s *Service) Register(service string, cfg ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("service %s: %w", service, err)
	}

	entry := s.entry(service)

	entry.mu.Lock()
	entry.cfg = cfg
	entry.mu.Unlock()

	return nil
}

// ConfigureFallback sets the per-service fallback applied when a call has
// no per-call fallback of its own. A nil fallback clears it.
func (s *Service) ConfigureFallback(service string, fallback *Fallback) error {
	if fallback != nil {
		if err := fallback.Validate(); err != nil {
			return err
		}
	}

	entry := s.entry(service)

	entry.mu.Lock()
	entry.fallback = fallback
	entry.mu.Unlock()

	return nil
}

// ExecuteDatabase runs op against the well-known database dependency.
func (s *Service) ExecuteDatabase(ctx context.Context, op Operation, opts ...CallOption) (any, error) {
	return s.Execute(ctx, "database", op, opts...)
}

// ExecuteRedis runs op against the well-known cache dependency.
func (s *Service) ExecuteRedis(ctx context.Context, op Operation, opts ...CallOption) (any, error) {
	return s.Execute(ctx, "redis", op, opts...)
}

// Execute runs op against the named dependency. The call is routed through
// the service's circuit breaker, bounded by a timeout, and retried with
// backoff on failure. When every attempt fails, a configured fallback value
// is returned and the service degrades; without a usable fallback the
// original error is surfaced and the service becomes unavailable.
func (s *Service) Execute(ctx context.Context, service string, op Operation, opts ...CallOption) (any, error) {
	entry := s.entry(service)

	options := callOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	entry.mu.Lock()
	timeout := entry.cfg.Timeout
	maxRetries := entry.cfg.MaxRetries
	fallback := entry.fallback
	entry.mu.Unlock()

	if options.timeout != nil && *options.timeout > 0 {
		timeout = *options.timeout
	}

	if options.maxRetries != nil && *options.maxRetries >= 0 {
		maxRetries = *options.maxRetries
	}

	if options.fallback != nil {
		fallback = options.fallback
	}

	started := time.Now()
	result, err := s.attempt(ctx, service, op, timeout, maxRetries)
	elapsed := time.Since(started)

	if err == nil {
		s.recordOperation(service, "success", elapsed)
		s.recordSuccess(entry)

		return result, nil
	}

	s.recordOperation(service, outcomeLabel(err), elapsed)

	return s.degrade(ctx, entry, fallback, err)
}

// attempt runs up to 1+maxRetries tries through the breaker. A rejection
// from an open breaker ends the loop immediately: retrying cannot help and
// would only delay the fallback.
func (s *Service) attempt(ctx context.Context, service string, op Operation, timeout time.Duration, maxRetries int) (any, error) {
	var lastErr error

	for attemptNo := 0; attemptNo <= maxRetries; attemptNo++ {
		if attemptNo > 0 {
			if sleepErr := backoff.SleepWithContext(ctx, s.policy.Delay(attemptNo-1)); sleepErr != nil {
				return nil, lastErr
			}

			s.logger.Debugf("retrying %s, attempt %d of %d", service, attemptNo+1, maxRetries+1)
		}

		result, err := s.registry.Call(ctx, service, func() (any, error) {
			return runWithTimeout(ctx, timeout, op)
		})
		if err == nil {
			return result, nil
		}

		lastErr = err

		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// degrade applies the fallback after a failed operation and settles the
// service's health bucket: degraded with a working fallback, unavailable
// otherwise.
func (s *Service) degrade(ctx context.Context, entry *serviceEntry, fallback *Fallback, cause error) (any, error) {
	if fallback != nil && fallback.usable() {
		value, fbErr := fallback.resolve(ctx)
		if fbErr == nil {
			s.recordFallback(entry.name, "success")
			s.recordFailure(entry, cause, StateDegraded)

			s.logger.Warnf("service %s degraded, serving fallback: %v", entry.name, cause)

			return value, nil
		}

		s.recordFallback(entry.name, "failure")
		s.recordFailure(entry, cause, StateUnavailable)

		s.logger.Errorf("service %s unavailable, fallback failed: %v (cause: %v)", entry.name, fbErr, cause)

		return nil, fmt.Errorf("service %s: %w (cause: %w)", entry.name, ErrFallbackFailed, cause)
	}

	s.recordFailure(entry, cause, StateUnavailable)

	s.logger.Errorf("service %s unavailable, no fallback: %v", entry.name, cause)

	return nil, fmt.Errorf("service %s: %w (cause: %w)", entry.name, ErrNoFallback, cause)
}

// SetServiceState administratively overrides a service's health bucket,
// used for maintenance windows and tests. Counters are cleared so the
// override is not immediately undone by stale streaks.
func (s *Service) SetServiceState(service string, state State) {
	entry := s.entry(service)

	entry.mu.Lock()
	previous := entry.state
	entry.state = state
	entry.consecutiveSuccesses = 0
	entry.consecutiveFailures = 0
	entry.lastTransition = time.Now().UTC()

	if state == StateHealthy {
		entry.downSince = time.Time{}
	} else if previous == StateHealthy {
		entry.downSince = entry.lastTransition
	}
	entry.mu.Unlock()

	if previous != state {
		s.logger.Infof("service %s state overridden: %s -> %s", service, previous, state)
		s.notify(events.NewStateChanged(service, string(previous), string(state)))
	}
}

// GetServiceState returns the current health bucket for service. Untracked
// services report healthy.
func (s *Service) GetServiceState(service string) State {
	entry := s.entry(service)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return entry.state
}

// EnterMaintenance marks a service as intentionally degraded. Operations
// still execute; the flag only affects reporting until ExitMaintenance.
func (s *Service) EnterMaintenance(service string) {
	entry := s.entry(service)

	entry.mu.Lock()
	entry.maintenance = true
	entry.mu.Unlock()

	s.logger.Infof("service %s entering maintenance", service)
	s.SetServiceState(service, StateDegraded)
}

// ExitMaintenance clears the maintenance flag and restores the service to
// healthy.
func (s *Service) ExitMaintenance(service string) {
	entry := s.entry(service)

	entry.mu.Lock()
	entry.maintenance = false
	entry.mu.Unlock()

	s.logger.Infof("service %s leaving maintenance", service)
	s.SetServiceState(service, StateHealthy)
}

// GetSystemHealth aggregates every tracked service into one view. The
// overall status is unavailable when any critical service is unavailable,
// degraded when any service is degraded or a non-critical one unavailable,
// healthy otherwise.
func (s *Service) GetSystemHealth() SystemHealth {
	s.mu.RLock()
	entries := make([]*serviceEntry, 0, len(s.entries))

	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	services := make([]ServiceHealth, 0, len(entries))
	overall := StateHealthy

	for _, entry := range entries {
		entry.mu.Lock()
		health := ServiceHealth{
			Service:             entry.name,
			Status:              entry.state,
			Critical:            entry.cfg.Critical,
			Maintenance:         entry.maintenance,
			ConsecutiveFailures: entry.consecutiveFailures,
			LastError:           entry.lastError,
			LastTransition:      entry.lastTransition,
		}
		entry.mu.Unlock()

		health.CircuitState = s.registry.GetState(entry.name)

		// A healthy bucket cannot outrank a breaker that is rejecting
		// calls, e.g. after an administrative ForceOpen.
		if health.Status == StateHealthy && rejecting(health.CircuitState) {
			health.Status = StateDegraded
		}

		services = append(services, health)

		switch {
		case health.Status == StateUnavailable && health.Critical:
			overall = StateUnavailable
		case health.Status != StateHealthy:
			overall = overall.Worse(StateDegraded)
		}
	}

	sort.Slice(services, func(i, j int) bool {
		return services[i].Service < services[j].Service
	})

	return SystemHealth{
		OverallStatus: overall,
		Services:      services,
		Summary:       s.registry.GetHealthSummary(),
		Timestamp:     time.Now().UTC(),
	}
}

// entry returns the record for service, creating a healthy one on first
// reference.
func (s *Service) entry(service string) *serviceEntry {
	s.mu.RLock()
	entry, exists := s.entries[service]
	s.mu.RUnlock()

	if exists {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists = s.entries[service]; exists {
		return entry
	}

	entry = &serviceEntry{
		name:           service,
		cfg:            s.defaults,
		state:          StateHealthy,
		lastTransition: time.Now().UTC(),
	}
	s.entries[service] = entry

	return entry
}

// recordSuccess advances the recovery streak. A degraded or unavailable
// service returns to healthy only after a full recovery window of
// consecutive successes, and fires the recovery event exactly once.
func (s *Service) recordSuccess(entry *serviceEntry) {
	entry.mu.Lock()

	entry.consecutiveFailures = 0
	entry.consecutiveSuccesses++
	entry.lastError = ""

	if entry.state == StateHealthy {
		entry.mu.Unlock()
		return
	}

	if entry.consecutiveSuccesses < entry.cfg.RecoveryWindow {
		entry.mu.Unlock()
		return
	}

	previous := entry.state
	entry.state = StateHealthy
	entry.lastTransition = time.Now().UTC()

	downtime := time.Duration(0)
	if !entry.downSince.IsZero() {
		downtime = entry.lastTransition.Sub(entry.downSince)
		entry.downSince = time.Time{}
	}
	entry.mu.Unlock()

	s.logger.Infof("service %s recovered after %v", entry.name, downtime)

	s.notify(events.NewStateChanged(entry.name, string(previous), string(StateHealthy)))
	s.notify(events.NewRecoveryCompleted(entry.name, downtime))
}

// recordFailure settles the bucket after a failed attempt sequence. State
// updates happen in completion order under the entry lock, so a late
// success cannot mask a newer failure.
func (s *Service) recordFailure(entry *serviceEntry, cause error, target State) {
	entry.mu.Lock()

	entry.consecutiveSuccesses = 0
	entry.consecutiveFailures++
	entry.lastError = cause.Error()

	breached := entry.consecutiveFailures == entry.cfg.AlertThreshold
	threshold := entry.cfg.AlertThreshold
	failures := entry.consecutiveFailures

	previous := entry.state
	changed := previous != target
	entry.state = target

	if changed {
		entry.lastTransition = time.Now().UTC()

		if previous == StateHealthy {
			entry.downSince = entry.lastTransition
		}
	}
	entry.mu.Unlock()

	if changed {
		s.notify(events.NewStateChanged(entry.name, string(previous), string(target)))
	}

	if breached {
		s.notify(events.NewThresholdBreached(entry.name, failures, threshold))
	}
}

func (s *Service) notify(event events.Event) {
	if s.notifier != nil {
		s.notifier.Notify(event)
	}
}

// Flush waits for in-flight event notifications, for shutdown and tests.
func (s *Service) Flush() {
	if s.notifier != nil {
		s.notifier.Wait()
	}
}

func (s *Service) recordOperation(service, outcome string, elapsed time.Duration) {
	histogram, err := s.metrics.Histogram(metrics.MetricOperationDuration)
	if err != nil {
		return
	}

	_ = histogram.WithLabels(map[string]string{
		"service": service,
		"outcome": outcome,
	}).Record(context.Background(), elapsed.Milliseconds())
}

func (s *Service) recordFallback(service, outcome string) {
	counter, err := s.metrics.Counter(metrics.MetricFallbackExecutions)
	if err != nil {
		return
	}

	_ = counter.WithLabels(map[string]string{
		"service": service,
		"outcome": outcome,
	}).AddOne(context.Background())
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "rejected"
	case errors.Is(err, ErrOperationTimeout):
		return "timeout"
	default:
		return "failure"
	}
}

func rejecting(state circuitbreaker.State) bool {
	return state == circuitbreaker.StateOpen || state == circuitbreaker.StateForcedOpen
}

// runWithTimeout executes op with a hard deadline. The operation runs on
// its own goroutine; a panic inside it is contained and reported as a
// failure. When the deadline fires the goroutine is abandoned, so op must
// honor ctx to avoid leaking work.
func runWithTimeout(ctx context.Context, timeout time.Duration, op Operation) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("operation panic: %v", r)}
			}
		}()

		result, err := op(ctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrOperationTimeout, timeout)
		}

		return nil, ctx.Err()
	case o := <-done:
		return o.result, o.err
	}
}
