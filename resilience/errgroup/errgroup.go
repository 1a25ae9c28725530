// Package errgroup runs a set of goroutines sharing a cancellation context.
// Unlike golang.org/x/sync/errgroup, a panicking goroutine does not crash the
// process; the panic is recovered and surfaced as an error from Wait.
package errgroup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

// ErrPanicRecovered is returned by Wait when a goroutine in the group panicked.
var ErrPanicRecovered = errors.New("errgroup: panic recovered")

// Group manages goroutines that share a cancellation context. The first
// error returned by any goroutine cancels the context and is returned by
// Wait; later errors are discarded.
type Group struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
	logger  log.Logger
}

// WithContext returns a new Group and a derived context. The derived context
// is canceled when the first goroutine returns a non-nil error or when Wait
// returns, whichever happens first.
func WithContext(ctx context.Context) (*Group, context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	return &Group{ctx: ctx, cancel: cancel}, ctx
}

// SetLogger sets an optional logger used when a recovered panic is reported.
func (g *Group) SetLogger(logger log.Logger) {
	if g == nil {
		return
	}

	g.logger = logger
}

// Go starts fn in a new goroutine. A non-nil return or a panic records the
// group error and cancels the shared context.
func (g *Group) Go(fn func() error) {
	g.wg.Add(1)

	go func() {
		defer g.wg.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				if g.logger != nil {
					g.logger.Errorf("goroutine panic recovered: %v", recovered)
				}

				g.record(fmt.Errorf("%w: %v", ErrPanicRecovered, recovered))
			}
		}()

		if err := fn(); err != nil {
			g.record(err)
		}
	}()
}

// Wait blocks until every goroutine started with Go has returned, cancels
// the shared context, and returns the first recorded error, if any.
func (g *Group) Wait() error {
	g.wg.Wait()

	if g.cancel != nil {
		g.cancel()
	}

	return g.err
}

func (g *Group) record(err error) {
	g.errOnce.Do(func() {
		g.err = err
		if g.cancel != nil {
			g.cancel()
		}
	})
}
