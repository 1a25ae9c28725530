package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default channel prefix for published events. The event type is appended,
// e.g. resilience:events:health.state.changed.
const DefaultChannelPrefix = "resilience:events"

// ErrNilRedisClient indicates a RedisPublisher was built without a client.
var ErrNilRedisClient = errors.New("redis client cannot be nil")

const defaultPublishTimeout = 2 * time.Second

// RedisPublisher publishes events as JSON on Redis pub/sub channels, one
// channel per event type. Publishing is fire and forget: Redis pub/sub keeps
// no backlog, so subscribers that are offline miss events.
type RedisPublisher struct {
	client        redis.UniversalClient
	channelPrefix string
	timeout       time.Duration
}

// RedisOption customizes a RedisPublisher.
type RedisOption func(*RedisPublisher)

// WithChannelPrefix overrides the default channel prefix.
func WithChannelPrefix(prefix string) RedisOption {
	return func(p *RedisPublisher) {
		if prefix != "" {
			p.channelPrefix = prefix
		}
	}
}

// WithPublishTimeout bounds every publish call.
func WithPublishTimeout(timeout time.Duration) RedisOption {
	return func(p *RedisPublisher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewRedisPublisher creates a publisher over the given client.
func NewRedisPublisher(client redis.UniversalClient, opts ...RedisOption) (*RedisPublisher, error) {
	if client == nil {
		return nil, ErrNilRedisClient
	}

	p := &RedisPublisher{
		client:        client,
		channelPrefix: DefaultChannelPrefix,
		timeout:       defaultPublishTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Channel returns the pub/sub channel used for the given event type.
func (p *RedisPublisher) Channel(eventType string) string {
	return fmt.Sprintf("%s:%s", p.channelPrefix, eventType)
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.Channel(event.Type), payload).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}

	return nil
}
