package events

import (
	"context"
	"sync"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

// Publisher delivers events to a sink. Implementations must be safe for
// concurrent use and must not retry indefinitely; a failed delivery is a
// lost event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Multi fans an event out to several publishers. Each publisher gets its own
// attempt; one sink failing does not stop delivery to the others. The last
// error encountered is returned.
type Multi struct {
	publishers []Publisher
	logger     log.Logger
}

// NewMulti builds a fan-out publisher. Nil entries are skipped.
func NewMulti(logger log.Logger, publishers ...Publisher) *Multi {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	filtered := make([]Publisher, 0, len(publishers))

	for _, p := range publishers {
		if p != nil {
			filtered = append(filtered, p)
		}
	}

	return &Multi{publishers: filtered, logger: logger}
}

// Publish implements Publisher.
func (m *Multi) Publish(ctx context.Context, event Event) error {
	var lastErr error

	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			m.logger.Warnf("event %s delivery failed for sink %T: %v", event.Type, p, err)
			lastErr = err
		}
	}

	return lastErr
}

// Bus is an in-process publisher that fans events out to subscriber channels.
// Subscriber channels are buffered; an event is dropped for a subscriber
// whose buffer is full.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	logger      log.Logger
	closed      bool
}

// NewBus creates a Bus whose subscriber channels buffer bufferSize events.
// Sizes below one are raised to one.
func NewBus(logger log.Logger, bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Bus{
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber and returns its channel. The channel
// is closed when the bus is closed.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)

	if b.closed {
		close(ch)
		return ch
	}

	b.subscribers = append(b.subscribers, ch)

	return ch
}

// Publish implements Publisher. It never blocks: subscribers with a full
// buffer miss the event.
func (b *Bus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Debugf("subscriber buffer full, dropping event %s for %s", event.Type, event.Service)
		}
	}

	return nil
}

// Close closes all subscriber channels. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for _, ch := range b.subscribers {
		close(ch)
	}

	b.subscribers = nil
}

// Notifier dispatches events to a publisher on background goroutines so the
// detecting code path never waits on delivery. Panics in the publisher are
// recovered and logged.
type Notifier struct {
	publisher Publisher
	logger    log.Logger
	wg        sync.WaitGroup
}

// NewNotifier wraps a publisher with asynchronous, panic-safe dispatch.
func NewNotifier(publisher Publisher, logger log.Logger) *Notifier {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Notifier{
		publisher: publisher,
		logger:    logger,
	}
}

// Notify publishes the event on a new goroutine. It returns immediately.
func (n *Notifier) Notify(event Event) {
	if n == nil || n.publisher == nil {
		return
	}

	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		defer func() {
			if r := recover(); r != nil {
				n.logger.Errorf("panic publishing event %s: %v", event.Type, r)
			}
		}()

		if err := n.publisher.Publish(context.Background(), event); err != nil {
			n.logger.Warnf("failed to publish event %s for %s: %v", event.Type, event.Service, err)
		}
	}()
}

// Wait blocks until all in-flight notifications finish. Intended for
// shutdown and tests.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
