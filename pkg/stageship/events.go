package stageship

import (
	"time"

	"github.com/bft-labs/stageship/internal/app"
	"github.com/bft-labs/stageship/internal/domain"
)

// State is the lifecycle state of a Sender.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
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

// Disposition is what happened to a delivered batch file.
type Disposition = domain.Disposition

const (
	DispositionArchived = domain.DispositionArchived
	DispositionDeleted  = domain.DispositionDeleted
)

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// BatchPromotedEvent is emitted when a staging batch reaches the row
// threshold and moves to pending.
type BatchPromotedEvent struct {
	Name string
	Rows int
}

// BatchDeliveredEvent is emitted after the sink acknowledged a batch.
type BatchDeliveredEvent struct {
	Name        string
	AckID       string
	Disposition Disposition
	Bytes       int
	Duration    time.Duration
}

// DeliveryErrorEvent is emitted when a submission fails. The batch stays
// pending and is retried on the next cycle.
type DeliveryErrorEvent struct {
	Name  string
	Error error
}

// EventHandler receives Sender events. Methods are called synchronously
// from the goroutine doing the work and must not call back into the Sender.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnBatchPromoted(event BatchPromotedEvent)
	OnBatchDelivered(event BatchDeliveredEvent)
	OnDeliveryError(event DeliveryErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)       {}
func (BaseEventHandler) OnBatchPromoted(BatchPromotedEvent)   {}
func (BaseEventHandler) OnBatchDelivered(BatchDeliveredEvent) {}
func (BaseEventHandler) OnDeliveryError(DeliveryErrorEvent)   {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) onPromoted(name string, rows int) {
	if e.handler == nil {
		return
	}
	e.handler.OnBatchPromoted(BatchPromotedEvent{Name: name, Rows: rows})
}

func (e *eventEmitterWrapper) OnBatchDelivered(name, ackID string, disposition domain.Disposition, bytes int, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnBatchDelivered(BatchDeliveredEvent{
		Name:        name,
		AckID:       ackID,
		Disposition: disposition,
		Bytes:       bytes,
		Duration:    duration,
	})
}

func (e *eventEmitterWrapper) OnDeliveryError(name string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnDeliveryError(DeliveryErrorEvent{Name: name, Error: err})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
