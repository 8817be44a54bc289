package stageship

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/bft-labs/stageship/internal/ports"
	"github.com/bft-labs/stageship/internal/spool"
)

// Retention defaults.
const (
	DefaultRetentionInterval = time.Hour
	DefaultHighWatermark     = 1 << 30 // 1 GiB
	DefaultLowWatermark      = 3 << 28 // 768 MiB
)

// RetentionConfig bounds the disk space taken by archived batches.
// When the archive grows past HighWatermark the oldest batches are removed
// until it is at or below LowWatermark. staging/ and pending/ are never
// touched.
type RetentionConfig struct {
	// Enabled controls whether retention is active. Default: false
	Enabled bool

	// CheckInterval is how often the archive size is checked. Default: 1h
	CheckInterval time.Duration

	// HighWatermark is the size in bytes above which removal begins.
	// Default: 1 GiB
	HighWatermark int64

	// LowWatermark is the target size in bytes after removal.
	// Default: 768 MiB
	LowWatermark int64
}

// DefaultRetentionConfig returns an enabled RetentionConfig with defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Enabled:       true,
		CheckInterval: DefaultRetentionInterval,
		HighWatermark: DefaultHighWatermark,
		LowWatermark:  DefaultLowWatermark,
	}
}

// WithArchiveRetention enables archive retention. It has no effect when
// Config.RemoveOnSend is set, since nothing is archived then.
//
// Usage:
//
//	s, err := stageship.New(ctx, cfg,
//	    stageship.WithArchiveRetention(stageship.RetentionConfig{
//	        Enabled:       true,
//	        HighWatermark: 10 << 30, // 10GB
//	        LowWatermark:  5 << 30,  // 5GB
//	        CheckInterval: 15 * time.Minute,
//	    }),
//	)
func WithArchiveRetention(cfg RetentionConfig) Option {
	if !cfg.Enabled {
		return func(o *options) {}
	}

	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultRetentionInterval
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = DefaultHighWatermark
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark / 4 * 3
	}

	return func(o *options) {
		o.retention = &cfg
	}
}

// retentionRunner manages the archive retention goroutine.
type retentionRunner struct {
	checkInterval time.Duration
	highWatermark int64
	lowWatermark  int64

	queue  *spool.Queue
	logger ports.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRetentionRunner(cfg RetentionConfig, queue *spool.Queue, logger ports.Logger) *retentionRunner {
	return &retentionRunner{
		checkInterval: cfg.CheckInterval,
		highWatermark: cfg.HighWatermark,
		lowWatermark:  cfg.LowWatermark,
		queue:         queue,
		logger:        logger,
	}
}

func (r *retentionRunner) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.logger.Info("archive retention enabled",
		ports.Int64("high_watermark", r.highWatermark),
		ports.Int64("low_watermark", r.lowWatermark),
	)

	r.wg.Add(1)
	go r.loop(runCtx)
}

func (r *retentionRunner) stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *retentionRunner) loop(ctx context.Context) {
	defer r.wg.Done()

	// Run immediately on startup
	r.runOnce(ctx)

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce removes the oldest archived batches while the archive is above
// the high watermark. It returns the number of bytes freed.
func (r *retentionRunner) runOnce(ctx context.Context) int64 {
	files, err := r.queue.Archived()
	if err != nil {
		r.logger.Error("archive retention: list failed", ports.Err(err))
		return 0
	}

	var size int64
	for _, f := range files {
		size += f.Size
	}
	if size <= r.highWatermark {
		return 0
	}

	var freed int64
	removed := 0
	for _, f := range files {
		if ctx.Err() != nil || size <= r.lowWatermark {
			break
		}
		if err := r.queue.RemoveArchived(f.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Error("archive retention: remove failed", ports.String("batch", f.Name), ports.Err(err))
			continue
		}
		size -= f.Size
		freed += f.Size
		removed++
	}

	if removed > 0 {
		r.logger.Info("archive retention completed",
			ports.Int("batches_removed", removed),
			ports.Int64("bytes_freed", freed),
		)
	}
	return freed
}
