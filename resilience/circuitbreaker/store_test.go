package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, &log.NoneLogger{})
	require.NoError(t, err)

	return store, mr
}

func TestRedisStore_PersistsTransitions(t *testing.T) {
	store, mr := newTestStore(t)

	store.OnStateChange("database", StateClosed, StateOpen)

	require.True(t, mr.Exists("resilience:breaker:database"))

	record, err := store.Get(context.Background(), "database")
	require.NoError(t, err)
	assert.Equal(t, "database", record.Service)
	assert.Equal(t, StateOpen, record.State)
	assert.Equal(t, StateClosed, record.From)
	assert.WithinDuration(t, time.Now().UTC(), record.ChangedAt, time.Minute)
}

func TestRedisStore_StatesExpire(t *testing.T) {
	store, mr := newTestStore(t)

	store.OnStateChange("redis", StateOpen, StateClosed)

	ttl := mr.TTL(store.Key("redis"))
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "never-seen")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStore_RegisteredAsListener(t *testing.T) {
	store, mr := newTestStore(t)

	registry := NewRegistry(&log.NoneLogger{})
	registry.RegisterStateChangeListener(store)
	require.NoError(t, registry.GetOrCreate("database", testConfig()))

	failNTimes(registry, "database", 3)

	require.Eventually(t, func() bool {
		return mr.Exists(store.Key("database"))
	}, time.Second, 10*time.Millisecond)

	record, err := store.Get(context.Background(), "database")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, record.State)
}
