package circuitbreaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

// DefaultStateKeyPrefix prefixes the Redis keys holding persisted breaker
// states, e.g. resilience:breaker:database.
const DefaultStateKeyPrefix = "resilience:breaker"

const (
	defaultStateTTL     = time.Hour
	defaultStoreTimeout = 2 * time.Second
)

// ErrStateNotFound is returned by RedisStore.Get for services with no
// persisted state.
var ErrStateNotFound = errors.New("circuitbreaker: no persisted state for service")

// PersistedState is the record written to Redis on every state transition.
// It lets operators inspect breaker history across restarts; the registry
// itself always boots closed.
type PersistedState struct {
	Service   string    `json:"service"`
	State     State     `json:"state"`
	From      State     `json:"from"`
	ChangedAt time.Time `json:"changed_at"`
}

// RedisStore persists breaker state transitions to Redis with a TTL. It is
// registered on the registry as a StateChangeListener; writes are best
// effort and never affect breaker behavior.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration
	logger    log.Logger
}

// StoreOption customizes a RedisStore.
type StoreOption func(*RedisStore)

// WithStateKeyPrefix overrides the default key prefix.
func WithStateKeyPrefix(prefix string) StoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithStateTTL overrides how long persisted states live.
func WithStateTTL(ttl time.Duration) StoreOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore creates a store over the given client.
func NewRedisStore(client redis.UniversalClient, logger log.Logger, opts ...StoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("circuitbreaker: redis client cannot be nil")
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	s := &RedisStore{
		client:    client,
		keyPrefix: DefaultStateKeyPrefix,
		ttl:       defaultStateTTL,
		timeout:   defaultStoreTimeout,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Key returns the Redis key for a service's persisted state.
func (s *RedisStore) Key(service string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, service)
}

// OnStateChange implements StateChangeListener by persisting the transition.
func (s *RedisStore) OnStateChange(service string, from State, to State) {
	record := PersistedState{
		Service:   service,
		State:     to,
		From:      from,
		ChangedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.Warnf("failed to marshal breaker state for %s: %v", service, err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.Key(service), payload, s.ttl).Err(); err != nil {
		s.logger.Warnf("failed to persist breaker state for %s: %v", service, err)
	}
}

// Get reads the persisted state for service.
func (s *RedisStore) Get(ctx context.Context, service string) (PersistedState, error) {
	payload, err := s.client.Get(ctx, s.Key(service)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PersistedState{}, fmt.Errorf("%w: %s", ErrStateNotFound, service)
		}

		return PersistedState{}, fmt.Errorf("read breaker state for %s: %w", service, err)
	}

	var record PersistedState
	if err := json.Unmarshal(payload, &record); err != nil {
		return PersistedState{}, fmt.Errorf("decode breaker state for %s: %w", service, err)
	}

	return record, nil
}
