package stageship

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bft-labs/stageship/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/stageship/internal/adapters/http"
	"github.com/bft-labs/stageship/internal/app"
	"github.com/bft-labs/stageship/internal/domain"
	"github.com/bft-labs/stageship/internal/integrity"
	"github.com/bft-labs/stageship/internal/ports"
	"github.com/bft-labs/stageship/internal/spool"
)

// Errors returned by the Sender; check them with errors.Is.
var (
	ErrAlreadyRunning   = domain.ErrAlreadyRunning
	ErrNotRunning       = domain.ErrNotRunning
	ErrShutdownTimeout  = domain.ErrShutdownTimeout
	ErrInvalidConfig    = domain.ErrInvalidConfig
	ErrStreamNotActive  = domain.ErrStreamNotActive
	ErrEmptyAck         = domain.ErrEmptyAck
	ErrInvalidBatchName = domain.ErrInvalidBatchName
	ErrInvalidRecord    = domain.ErrInvalidRecord
)

// CycleResult summarizes one delivery cycle.
type CycleResult = app.CycleResult

// Counts is the number of batch files per state directory.
type Counts = spool.Counts

// DeliveryStatus is the persisted summary of past deliveries.
type DeliveryStatus = domain.Status

// Sender stages records into batch files on disk and delivers complete
// batches to a stream. Use New to create one, Append to stage records and
// Start to begin delivery in the background.
type Sender struct {
	config     Config
	lifecycle  *app.Lifecycle
	queue      *spool.Queue
	writer     *spool.Writer
	worker     *app.Worker
	sink       ports.Sink
	statusRepo *fs.StatusFileRepository
	logger     ports.Logger
	retention  *retentionRunner

	// mu serializes Start and Stop.
	mu sync.Mutex
}

// New creates a Sender for cfg.
//
// The stream is described once through the sink; a stream that is not
// ACTIVE yields ErrStreamNotActive and nothing is created on disk. On
// success the state directories exist and any staging batch already at the
// row threshold has been promoted. The Sender starts in StateStopped.
func New(ctx context.Context, cfg Config, opts ...Option) (*Sender, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	sink := o.sink
	if sink == nil {
		if cfg.ServiceURL == "" {
			return nil, fmt.Errorf("%w: service url is required", ErrInvalidConfig)
		}
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		sink = httpAdapter.NewStreamSink(client, logger, httpAdapter.SinkConfig{
			ServiceURL: cfg.ServiceURL,
			AuthKey:    cfg.AuthKey,
			Stream:     cfg.StreamName,
			Structured: cfg.Structured,
		})
	}

	active, err := sink.VerifyActive(ctx, cfg.StreamName)
	if err != nil {
		return nil, fmt.Errorf("describe stream %q: %w", cfg.StreamName, err)
	}
	if !active {
		return nil, fmt.Errorf("%w: %s", ErrStreamNotActive, cfg.StreamName)
	}

	queue, err := spool.NewQueue(spool.Options{
		Root:          cfg.Root,
		Prefix:        cfg.Prefix,
		MaxRows:       cfg.MaxRows,
		KeepDelivered: !cfg.RemoveOnSend,
		Now:           o.now,
		Logger:        logger,
		OnPromote:     emitter.onPromoted,
	})
	if err != nil {
		return nil, err
	}
	if _, err := queue.ScanAndPromote(); err != nil {
		return nil, err
	}

	statusRepo := fs.NewStatusFileRepository(cfg.Root)
	worker := app.NewWorker(app.WorkerConfig{
		PollInterval: cfg.PollInterval,
		Structured:   cfg.Structured,
		Now:          o.now,
	}, queue, sink, statusRepo, logger, emitter)

	var retention *retentionRunner
	if o.retention != nil && !cfg.RemoveOnSend {
		retention = newRetentionRunner(*o.retention, queue, logger)
	}

	logger.Info("sender ready",
		ports.String("stream", cfg.StreamName),
		ports.String("root", cfg.Root),
		ports.Int("max_rows", cfg.MaxRows),
		ports.Bool("remove_on_send", cfg.RemoveOnSend),
		ports.Bool("structured", cfg.Structured),
	)

	return &Sender{
		config:     cfg,
		lifecycle:  app.NewLifecycle(logger, emitter),
		queue:      queue,
		writer:     spool.NewWriter(queue),
		worker:     worker,
		sink:       sink,
		statusRepo: statusRepo,
		logger:     logger,
		retention:  retention,
	}, nil
}

// Append stages one record. The record and a trailing newline are synced
// to the active batch before Append returns; the batch is promoted once it
// holds MaxRows rows. Append is safe for concurrent use and works whether
// or not delivery is running.
func (s *Sender) Append(record string) error {
	return s.writer.Append(record)
}

// AppendObject encodes v as a single JSON object and stages it like Append.
// v must be a struct or map whose encoding holds no nested objects and no
// braces in keys or string values, so that the record survives structured
// filtering; otherwise ErrInvalidRecord is returned and nothing is written.
func (s *Sender) AppendObject(v any) error {
	record, err := integrity.Encode(v)
	if err != nil {
		return err
	}
	return s.writer.Append(record)
}

// Start begins delivery in the background and returns immediately.
// A Sender whose worker crashed can be started again.
// Returns ErrAlreadyRunning if delivery is already running.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, err := s.lifecycle.Start(ctx, s.worker.Run)
	if err != nil {
		return err
	}
	if s.retention != nil {
		s.retention.start(runCtx)
	}
	return nil
}

// Stop cancels delivery and waits up to 30 seconds for the worker to
// finish. A submission in flight is allowed to complete.
// Returns ErrNotRunning if delivery is not running and ErrShutdownTimeout
// if the worker did not finish in time.
func (s *Sender) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.lifecycle.Stop(app.ShutdownTimeout)
	if errors.Is(err, ErrNotRunning) {
		return err
	}
	if s.retention != nil {
		s.retention.stop()
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (s *Sender) Status() State {
	return convertState(s.lifecycle.State())
}

// RunOnce runs a single delivery cycle in the caller's goroutine. It is
// meant for callers that drive delivery themselves and returns
// ErrAlreadyRunning while background delivery is active.
func (s *Sender) RunOnce(ctx context.Context) (CycleResult, error) {
	if s.lifecycle.Active() {
		return CycleResult{}, ErrAlreadyRunning
	}
	return s.worker.RunOnce(ctx)
}

// Counts returns the number of batch files per state directory.
func (s *Sender) Counts() (Counts, error) {
	return s.queue.Counts()
}

// DeliveryStatus returns the persisted delivery summary.
func (s *Sender) DeliveryStatus(ctx context.Context) (DeliveryStatus, error) {
	return s.statusRepo.Load(ctx)
}
