// Package shutdown drives a run from the first interrupt to process exit.
package shutdown

import (
	"context"
	"errors"
	"os"
	"sync"
)

// State is a step of the shutdown sequence.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateReported
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateReported:
		return "reported"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when a step is requested out of order.
var ErrInvalidTransition = errors.New("invalid shutdown transition")

// Controller moves Running -> Draining -> Reported -> Terminated.
// Only the first interrupt has an effect.
type Controller struct {
	mu       sync.Mutex
	state    State
	ctx      context.Context
	cancel   context.CancelFunc
	draining chan struct{}
	observer func(from, to State)
}

// New returns a controller in the Running state. Its Context is cancelled on interrupt.
func New(parent context.Context) *Controller {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Controller{
		state:    StateRunning,
		ctx:      ctx,
		cancel:   cancel,
		draining: make(chan struct{}),
	}
}

// OnTransition registers a callback invoked after every state change.
func (c *Controller) OnTransition(fn func(from, to State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// Context is cancelled when the controller leaves Running.
func (c *Controller) Context() context.Context {
	return c.ctx
}

// Draining is closed once the first interrupt has been handled.
func (c *Controller) Draining() <-chan struct{} {
	return c.draining
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Interrupt stops new ticks by cancelling Context. It reports whether this call caused the
// transition; repeated calls are no-ops.
func (c *Controller) Interrupt() bool {
	if err := c.transition(StateRunning, StateDraining); err != nil {
		return false
	}
	c.cancel()
	close(c.draining)
	return true
}

// Watch consumes signals until ctx is done. The first signal interrupts the run and later ones
// are swallowed, so a second Ctrl-C does not kill the process mid-report.
func (c *Controller) Watch(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			c.Interrupt()
		}
	}
}

// Report runs fn exactly once while moving Draining -> Reported.
func (c *Controller) Report(fn func()) error {
	if err := c.transition(StateDraining, StateReported); err != nil {
		return err
	}
	if fn != nil {
		fn()
	}
	return nil
}

// Terminate moves Reported -> Terminated.
func (c *Controller) Terminate() error {
	return c.transition(StateReported, StateTerminated)
}

func (c *Controller) transition(from, to State) error {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.state = to
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer(from, to)
	}
	return nil
}
