// Package lifecycle coordinates subsystem startup, readiness, and graceful
// shutdown through hooks bound to one cancellable context.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShutdownTimeout is returned when shutdown hooks outlive the timeout.
var ErrShutdownTimeout = errors.New("shutdown timed out")

// Coordinator runs startup hooks as they are registered and holds
// shutdown hooks until Shutdown cancels its context.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup

	// phase counts the startup hooks registered since the last Checkpoint.
	phaseMu sync.Mutex
	phase   *sync.WaitGroup

	ready atomic.Bool
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		phase:  new(sync.WaitGroup),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently, starting immediately.
func (c *Coordinator) OnStartup(fn func()) {
	c.phaseMu.Lock()
	phase := c.phase
	phase.Add(1)
	c.phaseMu.Unlock()

	c.startupWg.Go(func() {
		defer phase.Done()
		fn()
	})
}

// Checkpoint returns a func that blocks until every startup hook registered
// before the call has returned. Hooks registered later are not waited on,
// so a subsystem can order its own startup after the ones it depends on.
func (c *Coordinator) Checkpoint() func() {
	c.phaseMu.Lock()
	defer c.phaseMu.Unlock()

	phase := c.phase
	c.phase = new(sync.WaitGroup)
	return phase.Wait
}

// OnShutdown runs fn concurrently. Hooks block on <-c.Context().Done()
// before releasing resources.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// Ready reports whether startup has completed and shutdown has not begun.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// WaitForStartup blocks until all startup hooks have returned and marks
// the coordinator ready.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	if c.ctx.Err() == nil {
		c.ready.Store(true)
	}
}

// Shutdown clears readiness, cancels the context, and waits for shutdown
// hooks to return within timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.ready.Store(false)
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, timeout)
	}
}
