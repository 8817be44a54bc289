package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/stageship/internal/domain"
	"github.com/bft-labs/stageship/internal/integrity"
	"github.com/bft-labs/stageship/internal/ports"
	"github.com/bft-labs/stageship/internal/spool"
)

// DefaultPollInterval is the pause between two delivery cycles.
const DefaultPollInterval = 10 * time.Second

// WorkerConfig contains configuration for the delivery loop.
type WorkerConfig struct {
	// PollInterval is the pause after each cycle.
	PollInterval time.Duration

	// Structured enables the integrity filter on every payload.
	Structured bool

	// Now is the clock used for status timestamps. Default: time.Now
	Now func() time.Time
}

// DeliveryEmitter is called after every submission attempt that reached the sink.
type DeliveryEmitter interface {
	OnBatchDelivered(name, ackID string, disposition domain.Disposition, bytes int, duration time.Duration)
	OnDeliveryError(name string, err error)
}

// CycleResult summarizes one pass over pending/.
type CycleResult struct {
	Delivered int
	Failed    int
	Skipped   int
}

// Worker ships pending batches to the sink on a fixed interval.
type Worker struct {
	// mu serializes cycles so no batch is submitted by two of them at once.
	mu sync.Mutex

	config     WorkerConfig
	queue      *spool.Queue
	sink       ports.Sink
	statusRepo ports.StatusRepository
	logger     ports.Logger
	emitter    DeliveryEmitter
}

// NewWorker creates a worker with the given dependencies. emitter may be nil.
func NewWorker(
	config WorkerConfig,
	queue *spool.Queue,
	sink ports.Sink,
	statusRepo ports.StatusRepository,
	logger ports.Logger,
	emitter DeliveryEmitter,
) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Worker{
		config:     config,
		queue:      queue,
		sink:       sink,
		statusRepo: statusRepo,
		logger:     logger,
		emitter:    emitter,
	}
}

// Run executes delivery cycles until ctx is canceled. A cycle that has
// started always runs to the end; cancellation is observed between cycles.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("delivery loop started", ports.Duration("poll_interval", w.config.PollInterval))
	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("delivery cycle failed", ports.Err(err))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("delivery loop stopped")
			return ctx.Err()
		case <-time.After(w.config.PollInterval):
		}
	}
}

// RunOnce makes one pass over pending/ in listing order. Per-batch failures
// are logged and leave the batch pending for the next cycle; only failures
// to reach pending/ itself are returned.
func (w *Worker) RunOnce(ctx context.Context) (CycleResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var res CycleResult

	if err := w.queue.EnsureDirectories(); err != nil {
		return res, err
	}
	names, err := w.queue.Pending()
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}
	if len(names) == 0 {
		return res, nil
	}

	// A status that failed to load is never saved over.
	persist := true
	status, err := w.statusRepo.Load(ctx)
	if err != nil {
		w.logger.Warn("failed to load delivery status, not saving this cycle", ports.Err(err))
		status = domain.Status{}
		persist = false
	}

	// Stop must not interrupt a submission halfway.
	submitCtx := context.WithoutCancel(ctx)

	for _, name := range names {
		switch w.deliver(submitCtx, name, &status) {
		case outcomeDelivered:
			res.Delivered++
		case outcomeFailed:
			res.Failed++
		default:
			res.Skipped++
		}
	}

	if persist && res.Delivered+res.Failed > 0 {
		if err := w.statusRepo.Save(submitCtx, status); err != nil {
			w.logger.Error("failed to save delivery status", ports.Err(err))
		}
	}
	return res, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeFailed
	outcomeDelivered
)

func (w *Worker) deliver(ctx context.Context, name string, status *domain.Status) outcome {
	raw, err := w.queue.ReadPending(name)
	if err != nil {
		w.logger.Error("failed to read batch", ports.String("batch", name), ports.Err(err))
		return outcomeSkipped
	}
	if len(raw) == 0 {
		w.logger.Debug("empty batch, retrying next cycle", ports.String("batch", name))
		return outcomeSkipped
	}

	payload := raw
	if w.config.Structured {
		payload = []byte(integrity.Clean(string(raw)))
		if len(payload) == 0 {
			w.logger.Warn("batch holds no complete records", ports.String("batch", name), ports.Int("bytes", len(raw)))
		}
	}

	start := w.config.Now()
	ackID, err := w.sink.Submit(ctx, payload)
	if err == nil && ackID == "" {
		err = domain.ErrEmptyAck
	}
	if err != nil {
		w.logger.Error("failed putting record", ports.String("batch", name), ports.Err(err))
		status.RecordFailure(w.config.Now())
		if w.emitter != nil {
			w.emitter.OnDeliveryError(name, err)
		}
		return outcomeFailed
	}
	duration := w.config.Now().Sub(start)

	disposition, err := w.queue.Dispose(name)
	if err != nil {
		// Acknowledged but still pending, so it goes out again next cycle.
		w.logger.Error("failed to dispose delivered batch",
			ports.String("batch", name),
			ports.String("ack_id", ackID),
			ports.Err(err),
		)
	} else {
		w.logger.Info("batch sent",
			ports.String("batch", name),
			ports.String("ack_id", ackID),
			ports.String("disposition", disposition.String()),
			ports.Int("bytes", len(payload)),
			ports.Duration("duration", duration),
		)
	}

	status.RecordDelivery(name, ackID, domain.Checksum(payload), w.config.Now())
	if w.emitter != nil {
		w.emitter.OnBatchDelivered(name, ackID, disposition, len(payload), duration)
	}
	return outcomeDelivered
}
