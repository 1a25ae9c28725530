// Package server runs the HTTP surface and the background health monitor as
// one unit with a graceful shutdown sequence.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/errgroup"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

// ErrNoServerConfigured indicates Run was called without an HTTP app.
var ErrNoServerConfigured = errors.New("server: no HTTP server configured, use WithHTTPServer")

// Lifecycle is a background component tied to the server's lifetime, such as
// the health monitor. Start must not block; Stop must block until the
// component has finished.
type Lifecycle interface {
	Start()
	Stop()
}

// Flusher drains buffered work before the process exits, such as in-flight
// event notifications.
type Flusher interface {
	Flush()
}

// Manager starts the HTTP server and any attached background components,
// then blocks until a termination signal, a closed shutdown channel, or a
// startup failure, and shuts everything down in order.
type Manager struct {
	app             *fiber.App
	address         string
	components      []Lifecycle
	flushers        []Flusher
	logger          log.Logger
	shutdownChan    <-chan struct{}
	shutdownOnce    sync.Once
	shutdownTimeout time.Duration
	started         chan struct{}
	startedOnce     sync.Once
	startupErrors   chan error
}

// NewManager creates a Manager. Logger may be nil, in which case output is
// discarded.
func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Manager{
		logger:          logger,
		shutdownTimeout: 30 * time.Second,
		started:         make(chan struct{}),
		startupErrors:   make(chan error, 1),
	}
}

// WithHTTPServer configures the Fiber app and its listen address. An empty
// address falls back to the SERVER_ADDRESS environment variable, then to
// DefaultAddress.
func (m *Manager) WithHTTPServer(app *fiber.App, address string) *Manager {
	if address == "" {
		address = GetenvOrDefault("SERVER_ADDRESS", DefaultAddress)
	}

	m.app = app
	m.address = address

	return m
}

// WithComponent attaches a background component started before the HTTP
// listener and stopped after it.
func (m *Manager) WithComponent(c Lifecycle) *Manager {
	m.components = append(m.components, c)

	return m
}

// WithFlusher attaches a component drained at the end of shutdown.
func (m *Manager) WithFlusher(f Flusher) *Manager {
	m.flushers = append(m.flushers, f)

	return m
}

// WithShutdownChannel sets a channel whose closure triggers shutdown. Tests
// use this instead of sending OS signals.
func (m *Manager) WithShutdownChannel(ch <-chan struct{}) *Manager {
	m.shutdownChan = ch

	return m
}

// WithShutdownTimeout bounds how long shutdown waits for the HTTP server to
// drain. Defaults to 30 seconds.
func (m *Manager) WithShutdownTimeout(d time.Duration) *Manager {
	m.shutdownTimeout = d

	return m
}

// Started returns a channel closed once the listener goroutine has been
// launched. It signals the goroutine was spawned, not that the socket is
// bound.
func (m *Manager) Started() <-chan struct{} {
	return m.started
}

// Run starts everything and blocks until shutdown completes. It returns the
// listener error if the HTTP server failed to start.
func (m *Manager) Run() error {
	if m.app == nil {
		return ErrNoServerConfigured
	}

	for _, c := range m.components {
		c.Start()
	}

	listeners, _ := errgroup.WithContext(context.Background())
	listeners.SetLogger(m.logger)

	listeners.Go(func() error {
		m.logger.Infof("starting HTTP server on %s", m.address)

		if err := m.app.Listen(m.address); err != nil {
			select {
			case m.startupErrors <- fmt.Errorf("http server: %w", err):
			default:
			}

			return err
		}

		return nil
	})

	m.startedOnce.Do(func() {
		close(m.started)
	})

	var startupErr error

	select {
	case <-m.waitChannel():
	case startupErr = <-m.startupErrors:
		m.logger.Errorf("server startup failed: %v", startupErr)
	}

	m.logger.Info("shutting down")
	m.executeShutdown()

	if err := listeners.Wait(); startupErr == nil && err != nil && !errors.Is(err, errgroup.ErrPanicRecovered) {
		startupErr = err
	}

	return startupErr
}

// waitChannel returns the channel Run blocks on: the injected shutdown
// channel when set, otherwise SIGINT/SIGTERM delivery.
func (m *Manager) waitChannel() <-chan struct{} {
	if m.shutdownChan != nil {
		return m.shutdownChan
	}

	done := make(chan struct{})

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		signal.Stop(c)
		close(done)
	}()

	return done
}

// executeShutdown runs the shutdown sequence exactly once: drain the HTTP
// server with a timeout, stop background components, flush buffered work,
// sync the logger.
func (m *Manager) executeShutdown() {
	m.shutdownOnce.Do(func() {
		if m.app != nil {
			if err := m.app.ShutdownWithTimeout(m.shutdownTimeout); err != nil {
				m.logger.Errorf("error during HTTP server shutdown: %v", err)
			}
		}

		for _, c := range m.components {
			c.Stop()
		}

		for _, f := range m.flushers {
			f.Flush()
		}

		if err := m.logger.Sync(); err != nil {
			m.logger.Errorf("failed to sync logger: %v", err)
		}

		m.logger.Info("graceful shutdown completed")
	})
}
