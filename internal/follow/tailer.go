// Package follow turns lines appended to a file into records.
package follow

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/stageship/internal/ports"
)

// Tailer reads complete lines appended to a file and hands each one to a
// callback. A trailing line without a newline is held back until it is
// terminated. Empty lines are dropped.
type Tailer struct {
	path    string
	logger  ports.Logger
	offset  int64
	partial []byte
}

// NewTailer creates a Tailer for path. With fromStart unset only lines
// written after NewTailer returns are reported.
func NewTailer(path string, fromStart bool, logger ports.Logger) (*Tailer, error) {
	t := &Tailer{path: filepath.Clean(path), logger: logger}
	if fromStart {
		return t, nil
	}
	info, err := os.Stat(t.path)
	switch {
	case err == nil:
		t.offset = info.Size()
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	return t, nil
}

// Run watches the file until ctx is canceled, calling emit for every new
// line. An error from emit stops Run and is returned.
func (t *Tailer) Run(ctx context.Context, emit func(line string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so the file may be created or replaced later.
	dir := filepath.Dir(t.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if err := t.drain(emit); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != t.path {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				t.logger.Info("followed file moved away, waiting for it to reappear", ports.String("path", t.path))
				t.reset()
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.drain(emit); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("watcher error", ports.Err(err))
		}
	}
}

func (t *Tailer) reset() {
	t.offset = 0
	t.partial = nil
}

// drain reads from the last offset to the end of the file.
func (t *Tailer) drain(emit func(string) error) error {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.reset()
			return nil
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < t.offset {
		t.logger.Info("followed file truncated, reading from start", ports.String("path", t.path))
		t.reset()
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	// offset only moves past a line once emit has accepted it, so a failed
	// line is read again by the next drain.
	r := bufio.NewReader(f)
	for {
		chunk, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			t.offset += int64(len(chunk))
			t.partial = append(t.partial, chunk...)
			return nil
		}
		if err != nil {
			return err
		}

		line := append(append([]byte(nil), t.partial...), chunk[:len(chunk)-1]...)
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) > 0 {
			if err := emit(string(line)); err != nil {
				return err
			}
		}
		t.offset += int64(len(chunk))
		t.partial = nil
	}
}
