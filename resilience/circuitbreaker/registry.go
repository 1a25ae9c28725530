package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/metrics"
)

// Registry owns one breaker per named dependency. Breakers are created
// lazily on first reference and live for the lifetime of the process.
type Registry struct {
	mu         sync.RWMutex
	breakers   map[string]*gobreaker.CircuitBreaker
	configs    map[string]Config
	forced     map[string]struct{}
	lastChange map[string]time.Time
	openedAt   map[string]time.Time
	listeners  []StateChangeListener
	defaults   Config
	logger     log.Logger
	metrics    *metrics.Factory
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithDefaultConfig overrides the config applied to breakers created
// implicitly by Call.
func WithDefaultConfig(cfg Config) RegistryOption {
	return func(r *Registry) {
		r.defaults = cfg
	}
}

// WithMetrics attaches an instrument factory recording state transitions
// and recovery durations.
func WithMetrics(factory *metrics.Factory) RegistryOption {
	return func(r *Registry) {
		r.metrics = factory
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger log.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	r := &Registry{
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		configs:    make(map[string]Config),
		forced:     make(map[string]struct{}),
		lastChange: make(map[string]time.Time),
		openedAt:   make(map[string]time.Time),
		defaults:   DefaultConfig(),
		logger:     logger,
		metrics:    metrics.NewNopFactory(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// GetOrCreate returns the breaker for service, creating it with cfg when it
// does not exist yet. An invalid cfg is rejected; the existing breaker, if
// any, stays untouched.
func (r *Registry) GetOrCreate(service string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config for service %s: %w", service, err)
	}

	r.mu.RLock()
	_, exists := r.breakers[service]
	r.mu.RUnlock()

	if exists {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock.
	if _, exists = r.breakers[service]; exists {
		return nil
	}

	r.breakers[service] = r.newBreaker(service, cfg)
	r.configs[service] = cfg
	r.lastChange[service] = time.Now().UTC()

	r.logger.Infof("created circuit breaker for service %s", service)

	return nil
}

// Call executes fn through the breaker for service, creating the breaker
// with default settings on first reference. It returns ErrCircuitOpen
// without invoking fn when the breaker is open, forced open, or its
// half-open trial quota is exhausted.
func (r *Registry) Call(ctx context.Context, service string, fn Operation) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	breaker, exists := r.breakers[service]
	_, isForced := r.forced[service]
	r.mu.RUnlock()

	if isForced {
		r.logger.Warnf("circuit breaker for %s is forced open, rejecting call", service)

		return nil, fmt.Errorf("service %s: %w (forced open)", service, ErrCircuitOpen)
	}

	if !exists {
		if err := r.GetOrCreate(service, defaultConfigFor(service, r.defaults)); err != nil {
			return nil, err
		}

		r.mu.RLock()
		breaker = r.breakers[service]
		r.mu.RUnlock()
	}

	result, err := breaker.Execute(fn)
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			r.logger.Warnf("circuit breaker for %s is open, call rejected", service)

			return nil, fmt.Errorf("service %s: %w", service, ErrCircuitOpen)
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			// Half-open trial quota is exhausted. The caller sees the
			// same rejection as for an open breaker.
			r.logger.Warnf("circuit breaker for %s is half-open, trial quota exhausted", service)

			return nil, fmt.Errorf("service %s: %w (half-open quota exhausted)", service, ErrCircuitOpen)
		}
	}

	return result, err
}

// GetState returns the current state for service, StateUnknown when no
// breaker exists.
func (r *Registry) GetState(service string) State {
	r.mu.RLock()
	breaker, exists := r.breakers[service]
	_, isForced := r.forced[service]
	r.mu.RUnlock()

	if isForced {
		return StateForcedOpen
	}

	if !exists {
		return StateUnknown
	}

	return convertState(breaker.State())
}

// IsHealthy reports whether the breaker for service is closed. Open,
// half-open, and forced-open breakers all need recovery before traffic is
// considered safe.
func (r *Registry) IsHealthy(service string) bool {
	return r.GetState(service) == StateClosed
}

// GetCounts returns the statistics for service, zero counts when no breaker
// exists.
func (r *Registry) GetCounts(service string) Counts {
	r.mu.RLock()
	breaker, exists := r.breakers[service]
	r.mu.RUnlock()

	if !exists {
		return Counts{}
	}

	return convertCounts(breaker.Counts())
}

// GetStatus returns the externally visible condition of the breaker for
// service.
func (r *Registry) GetStatus(service string) (Status, error) {
	r.mu.RLock()
	breaker, exists := r.breakers[service]
	_, isForced := r.forced[service]
	lastChange := r.lastChange[service]
	r.mu.RUnlock()

	if !exists {
		return Status{}, fmt.Errorf("%w: %s", ErrBreakerNotFound, service)
	}

	counts := breaker.Counts()

	state := convertState(breaker.State())
	if isForced {
		state = StateForcedOpen
	}

	return Status{
		Service:         service,
		State:           state,
		FailureCount:    counts.TotalFailures,
		SuccessCount:    counts.TotalSuccesses,
		LastStateChange: lastChange,
	}, nil
}

// GetHealthSummary aggregates breaker states across the registry.
func (r *Registry) GetHealthSummary() HealthSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := HealthSummary{Total: len(r.breakers)}

	for service, breaker := range r.breakers {
		if _, isForced := r.forced[service]; isForced {
			summary.ForcedOpen++
			continue
		}

		switch convertState(breaker.State()) {
		case StateClosed:
			summary.Closed++
		case StateOpen:
			summary.Open++
		case StateHalfOpen:
			summary.HalfOpen++
		}
	}

	summary.Failed = summary.Open + summary.ForcedOpen

	return summary
}

// Services returns the names of all registered breakers.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]string, 0, len(r.breakers))
	for service := range r.breakers {
		services = append(services, service)
	}

	return services
}

// Reset returns the breaker for service to the closed state with cleared
// counters. Unknown services are ignored.
func (r *Registry) Reset(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetLocked(service)
}

// ResetAll resets every registered breaker.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for service := range r.breakers {
		r.resetLocked(service)
	}
}

// resetLocked recreates the breaker from its stored config. gobreaker has
// no reset operation, so a fresh instance is the only clean way back to
// closed. Callers must hold the write lock.
func (r *Registry) resetLocked(service string) {
	if _, exists := r.breakers[service]; !exists {
		return
	}

	cfg, hasConfig := r.configs[service]
	if !hasConfig {
		cfg = r.defaults
	}

	from := convertState(r.breakers[service].State())

	r.breakers[service] = r.newBreaker(service, cfg)
	r.lastChange[service] = time.Now().UTC()

	r.logger.Infof("circuit breaker for %s reset to closed", service)

	if from != StateClosed {
		go r.handleStateChange(service, from, StateClosed)
	}
}

// ForceOpen administratively opens the breaker for service. Every call is
// rejected until ForceClose. The breaker is created if missing so a
// maintenance window can be declared ahead of first traffic.
func (r *Registry) ForceOpen(service string) {
	r.mu.Lock()

	if _, exists := r.breakers[service]; !exists {
		cfg := defaultConfigFor(service, r.defaults)
		r.breakers[service] = r.newBreaker(service, cfg)
		r.configs[service] = cfg
	}

	if _, already := r.forced[service]; already {
		r.mu.Unlock()
		return
	}

	from := convertState(r.breakers[service].State())
	r.forced[service] = struct{}{}
	r.lastChange[service] = time.Now().UTC()
	r.mu.Unlock()

	r.logger.Warnf("circuit breaker for %s forced open", service)
	r.handleStateChange(service, from, StateForcedOpen)
}

// ForceClose clears a forced-open override and resets the breaker.
func (r *Registry) ForceClose(service string) {
	r.mu.Lock()

	if _, isForced := r.forced[service]; !isForced {
		r.mu.Unlock()
		return
	}

	delete(r.forced, service)

	cfg, hasConfig := r.configs[service]
	if !hasConfig {
		cfg = r.defaults
	}

	r.breakers[service] = r.newBreaker(service, cfg)
	r.lastChange[service] = time.Now().UTC()
	r.mu.Unlock()

	r.logger.Infof("circuit breaker for %s force closed", service)
	r.handleStateChange(service, StateForcedOpen, StateClosed)
}

// RegisterStateChangeListener registers a listener for state change
// notifications. Nil listeners are ignored.
func (r *Registry) RegisterStateChangeListener(listener StateChangeListener) {
	if listener == nil {
		r.logger.Warnf("attempted to register a nil state change listener")

		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, listener)
}

func (r *Registry) newBreaker(service string, cfg Config) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "service-" + service,
		MaxRequests: cfg.HalfOpenTrials,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}

			if cfg.FailureRatio > 0 && counts.Requests >= cfg.MinRequests && cfg.MinRequests > 0 {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)

				return ratio >= cfg.FailureRatio
			}

			return false
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			r.handleStateChange(service, convertState(from), convertState(to))
		},
	}

	return gobreaker.NewCircuitBreaker(settings)
}

// handleStateChange records transition bookkeeping, emits metrics, and
// notifies listeners without blocking breaker operations.
func (r *Registry) handleStateChange(service string, from, to State) {
	now := time.Now().UTC()

	r.mu.Lock()
	r.lastChange[service] = now

	var recovery time.Duration

	if from == StateClosed && to != StateClosed {
		r.openedAt[service] = now
	}

	if to == StateClosed {
		if openedAt, tracked := r.openedAt[service]; tracked {
			recovery = now.Sub(openedAt)
			delete(r.openedAt, service)
		}
	}

	listeners := make([]StateChangeListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	switch to {
	case StateOpen, StateForcedOpen:
		r.logger.Errorf("circuit breaker for %s opened (%s -> %s), requests will fast-fail", service, from, to)
	case StateHalfOpen:
		r.logger.Infof("circuit breaker for %s half-open, testing recovery", service)
	case StateClosed:
		r.logger.Infof("circuit breaker for %s closed, service is healthy", service)
	}

	r.recordStateChange(service, from, to, recovery)

	for _, listener := range listeners {
		// Notify on a goroutine so a slow listener cannot stall breaker
		// transitions. Panics are contained.
		go func(l StateChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Errorf("state change listener panic for service %s: %v", service, rec)
				}
			}()

			l.OnStateChange(service, from, to)
		}(listener)
	}
}

func (r *Registry) recordStateChange(service string, from, to State, recovery time.Duration) {
	ctx := context.Background()

	counter, err := r.metrics.Counter(metrics.MetricBreakerStateChanges)
	if err == nil {
		_ = counter.WithLabels(map[string]string{
			"service":    service,
			"from_state": string(from),
			"to_state":   string(to),
		}).AddOne(ctx)
	}

	if recovery <= 0 {
		return
	}

	histogram, err := r.metrics.Histogram(metrics.MetricBreakerRecoveryDuration)
	if err == nil {
		_ = histogram.WithLabels(map[string]string{"service": service}).Record(ctx, recovery.Milliseconds())
	}
}

// defaultConfigFor picks a preset for the well-known dependency names and
// falls back to the registry default otherwise.
func defaultConfigFor(service string, fallback Config) Config {
	switch service {
	case "database":
		return DatabaseConfig()
	case "redis":
		return RedisConfig()
	default:
		return fallback
	}
}
