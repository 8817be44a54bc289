package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/stageship/internal/domain"
	"github.com/bft-labs/stageship/internal/ports"
)

// ShutdownTimeout is the maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of the delivery worker.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle runs one background task at a time. A task that fails with
// anything other than its own cancellation leaves the lifecycle Crashed,
// from which it can be started again.
type Lifecycle struct {
	// emitMu is held across a state change and its notification so that
	// handlers see transitions in order. Handlers must not call Start or Stop.
	emitMu sync.Mutex

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	taskErr error

	logger  ports.Logger
	emitter EventEmitter
}

// NewLifecycle creates a stopped lifecycle. emitter may be nil.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{state: StateStopped, logger: logger, emitter: emitter}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Active reports whether a task has been started and not yet stopped.
func (l *Lifecycle) Active() bool {
	switch l.State() {
	case StateStarting, StateRunning, StateStopping:
		return true
	}
	return false
}

// Start runs task on its own goroutine with a context that Stop cancels,
// and returns that context. It fails with ErrAlreadyRunning unless the
// lifecycle is Stopped or Crashed and the previous task has returned.
func (l *Lifecycle) Start(parent context.Context, task func(context.Context) error) (context.Context, error) {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()

	l.mu.Lock()
	if l.done != nil {
		select {
		case <-l.done:
		default:
			l.mu.Unlock()
			return nil, domain.ErrAlreadyRunning
		}
	}
	from := l.state
	if !allowed(from, StateStarting) {
		l.mu.Unlock()
		return nil, domain.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	l.state, l.cancel, l.done, l.taskErr = StateStarting, cancel, done, nil
	l.mu.Unlock()

	l.notify(from, StateStarting, "start requested")
	go l.run(ctx, cancel, done, task)
	return ctx, nil
}

func (l *Lifecycle) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, task func(context.Context) error) {
	defer close(done)
	defer cancel()

	if err := l.transition(StateStarting, StateRunning, "task running"); err != nil {
		l.logger.Debug("task not started", ports.Err(err))
		return
	}

	err := task(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	l.logger.Error("task failed", ports.Err(err))

	l.mu.Lock()
	l.taskErr = err
	l.mu.Unlock()
	// Fails when Stop got there first; Stop then reports the error.
	_ = l.transition(StateRunning, StateCrashed, err.Error())
}

// Stop cancels the running task and waits up to timeout for it to return.
// It returns ErrNotRunning when no task is active, ErrShutdownTimeout when
// the task outlives timeout, and the task's own error if it failed.
func (l *Lifecycle) Stop(timeout time.Duration) error {
	l.emitMu.Lock()
	l.mu.Lock()
	from := l.state
	if !allowed(from, StateStopping) {
		l.mu.Unlock()
		l.emitMu.Unlock()
		return domain.ErrNotRunning
	}
	l.state = StateStopping
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	l.notify(from, StateStopping, "stop requested")
	l.emitMu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit", ports.Duration("timeout", timeout))
		_ = l.transition(StateStopping, StateCrashed, "shutdown timeout")
		return domain.ErrShutdownTimeout
	}

	l.mu.Lock()
	taskErr := l.taskErr
	l.mu.Unlock()
	if taskErr != nil {
		_ = l.transition(StateStopping, StateCrashed, taskErr.Error())
		return taskErr
	}
	_ = l.transition(StateStopping, StateStopped, "graceful shutdown")
	return nil
}

// transition moves from one state to another, failing if the lifecycle is
// no longer in from.
func (l *Lifecycle) transition(from, to State, reason string) error {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()

	l.mu.Lock()
	if l.state != from || !allowed(from, to) {
		current := l.state
		l.mu.Unlock()
		return fmt.Errorf("cannot move from %s to %s (state is %s)", from, to, current)
	}
	l.state = to
	l.mu.Unlock()

	l.notify(from, to, reason)
	return nil
}

func (l *Lifecycle) notify(from, to State, reason string) {
	if l.emitter != nil {
		l.emitter.OnStateChange(from, to, reason)
	}
	l.logger.Debug("state transition",
		ports.String("from", from.String()),
		ports.String("to", to.String()),
		ports.String("reason", reason),
	)
}
