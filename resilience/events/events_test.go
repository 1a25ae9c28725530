package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

func TestNewStateChanged(t *testing.T) {
	event := NewStateChanged("payment-gateway", "healthy", "degraded")

	assert.Equal(t, TypeStateChanged, event.Type)
	assert.Equal(t, "payment-gateway", event.Service)
	assert.Equal(t, "healthy", event.From)
	assert.Equal(t, "degraded", event.To)
	assert.NotZero(t, event.ID)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Second)
}

func TestNewRecoveryCompleted_CarriesDowntime(t *testing.T) {
	event := NewRecoveryCompleted("database", 90*time.Second)

	assert.Equal(t, TypeRecoveryCompleted, event.Type)
	assert.Equal(t, int64(90000), event.Details["downtime_ms"])
}

func TestNewThresholdBreached_CarriesCounts(t *testing.T) {
	event := NewThresholdBreached("notification-service", 5, 3)

	assert.Equal(t, TypeThresholdBreached, event.Type)
	assert.Equal(t, 5, event.Details["consecutive_failures"])
	assert.Equal(t, 3, event.Details["threshold"])
}

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(&log.NoneLogger{}, 4)
	defer bus.Close()

	first := bus.Subscribe()
	second := bus.Subscribe()

	event := NewStateChanged("redis", "healthy", "unavailable")
	require.NoError(t, bus.Publish(context.Background(), event))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, event.ID, got.ID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBus_DropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus(&log.NoneLogger{}, 1)
	defer bus.Close()

	ch := bus.Subscribe()

	require.NoError(t, bus.Publish(context.Background(), NewStateChanged("a", "healthy", "degraded")))
	require.NoError(t, bus.Publish(context.Background(), NewStateChanged("b", "healthy", "degraded")))

	got := <-ch
	assert.Equal(t, "a", got.Service)

	select {
	case unexpected := <-ch:
		t.Fatalf("expected second event to be dropped, got %s", unexpected.Service)
	default:
	}
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus(&log.NoneLogger{}, 1)
	ch := bus.Subscribe()

	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	assert.NoError(t, bus.Publish(context.Background(), NewStateChanged("a", "healthy", "degraded")))
}

func TestMulti_ContinuesAfterFailure(t *testing.T) {
	var delivered atomic.Int32

	failing := PublisherFunc(func(context.Context, Event) error {
		return errors.New("sink down")
	})
	working := PublisherFunc(func(context.Context, Event) error {
		delivered.Add(1)
		return nil
	})

	multi := NewMulti(&log.NoneLogger{}, failing, working, nil)

	err := multi.Publish(context.Background(), NewStateChanged("a", "healthy", "degraded"))

	require.Error(t, err)
	assert.Equal(t, int32(1), delivered.Load())
}

func TestNotifier_DoesNotBlockAndRecoversPanic(t *testing.T) {
	var delivered atomic.Int32

	panicking := PublisherFunc(func(context.Context, Event) error {
		delivered.Add(1)
		panic("publisher exploded")
	})

	notifier := NewNotifier(panicking, &log.NoneLogger{})

	notifier.Notify(NewStateChanged("a", "healthy", "degraded"))
	notifier.Wait()

	assert.Equal(t, int32(1), delivered.Load())

	// A second notification still works after the panic.
	notifier.Notify(NewStateChanged("b", "degraded", "healthy"))
	notifier.Wait()

	assert.Equal(t, int32(2), delivered.Load())
}

func TestRedisPublisher_PublishesJSONOnTypedChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	publisher, err := NewRedisPublisher(client)
	require.NoError(t, err)

	sub := client.Subscribe(context.Background(), publisher.Channel(TypeStateChanged))
	t.Cleanup(func() { _ = sub.Close() })

	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	event := NewStateChanged("payment-gateway", "healthy", "unavailable")
	require.NoError(t, publisher.Publish(context.Background(), event))

	msg, err := sub.ReceiveTimeout(context.Background(), 2*time.Second)
	require.NoError(t, err)

	received, ok := msg.(*redis.Message)
	require.True(t, ok, "expected *redis.Message, got %T", msg)
	assert.Equal(t, "resilience:events:health.state.changed", received.Channel)

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(received.Payload), &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "unavailable", decoded.To)
}

func TestNewRedisPublisher_NilClient(t *testing.T) {
	publisher, err := NewRedisPublisher(nil)

	require.ErrorIs(t, err, ErrNilRedisClient)
	assert.Nil(t, publisher)
}

func TestWebhookPublisher_PostsEvent(t *testing.T) {
	var received atomic.Pointer[Event]

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Alert-Token"))

		var event Event
		if err := json.NewDecoder(r.Body).Decode(&event); err == nil {
			received.Store(&event)
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	publisher, err := NewWebhookPublisher(server.URL, WithWebhookHeader("X-Alert-Token", "secret"))
	require.NoError(t, err)

	event := NewRecoveryCompleted("database", time.Minute)
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.NotNil(t, received.Load())
	assert.Equal(t, event.ID, received.Load().ID)
}

func TestWebhookPublisher_NonSuccessStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	publisher, err := NewWebhookPublisher(server.URL)
	require.NoError(t, err)

	err = publisher.Publish(context.Background(), NewStateChanged("a", "healthy", "degraded"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewWebhookPublisher_EmptyURL(t *testing.T) {
	publisher, err := NewWebhookPublisher("")

	require.ErrorIs(t, err, ErrEmptyWebhookURL)
	assert.Nil(t, publisher)
}
