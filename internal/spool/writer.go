package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bft-labs/stageship/internal/ports"
)

// Writer appends records to the active staging batch.
type Writer struct {
	mu    sync.Mutex
	queue *Queue
}

// NewWriter creates a Writer on top of q.
func NewWriter(q *Queue) *Writer {
	return &Writer{queue: q}
}

// Append writes record and a newline to the active batch and syncs the file
// before returning, then runs a promotion scan. The record is not
// validated; a record containing newlines counts as several rows.
//
// An error means the record was not stored. Once the record is synced a
// failed scan is only logged; the next append or scan promotes the batch.
func (w *Writer) Append(record string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	name := w.queue.Active()
	if name == "" {
		var err error
		if name, err = w.queue.ScanAndPromote(); err != nil {
			return err
		}
	}

	if err := appendLine(filepath.Join(w.queue.StagingPath(), name), record); err != nil {
		return fmt.Errorf("append to %s: %w", name, err)
	}

	if _, err := w.queue.ScanAndPromote(); err != nil {
		w.queue.logger.Error("promotion scan after append failed",
			ports.String("batch", name),
			ports.Err(err),
		)
	}
	return nil
}

func appendLine(path, record string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(record + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
