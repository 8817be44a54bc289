package follow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/stageship/pkg/log"
)

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) emit(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func appendTo(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func runTailer(t *testing.T, tl *Tailer, c *collector) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx, c.emit) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("tailer did not stop")
		}
	}
}

func waitLines(t *testing.T, c *collector, want []string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.Lines()) >= len(want)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, c.Lines())
}

func TestTailer_SkipsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "old 1\nold 2\n")

	tl, err := NewTailer(path, false, log.NewNoopLogger())
	require.NoError(t, err)
	c := &collector{}
	stop := runTailer(t, tl, c)
	defer stop()

	appendTo(t, path, "new 1\nnew 2\n")
	waitLines(t, c, []string{"new 1", "new 2"})
}

func TestTailer_FromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "old 1\n")

	tl, err := NewTailer(path, true, log.NewNoopLogger())
	require.NoError(t, err)
	c := &collector{}
	stop := runTailer(t, tl, c)
	defer stop()

	waitLines(t, c, []string{"old 1"})
}

func TestTailer_HoldsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	tl, err := NewTailer(path, false, log.NewNoopLogger())
	require.NoError(t, err)
	c := &collector{}
	stop := runTailer(t, tl, c)
	defer stop()

	appendTo(t, path, `{"a":`)
	appendTo(t, path, "1}\r\n\n")
	appendTo(t, path, "next\n")
	waitLines(t, c, []string{`{"a":1}`, "next"})
}

func TestTailer_FileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.log")
	tl, err := NewTailer(path, false, log.NewNoopLogger())
	require.NoError(t, err)
	c := &collector{}
	stop := runTailer(t, tl, c)
	defer stop()

	time.Sleep(20 * time.Millisecond)
	appendTo(t, path, "first\n")
	waitLines(t, c, []string{"first"})
}

func TestTailer_EmitErrorStopsRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "boom\n")
	tl, err := NewTailer(path, true, log.NewNoopLogger())
	require.NoError(t, err)

	want := errors.New("disk full")
	err = tl.Run(context.Background(), func(string) error { return want })
	assert.True(t, errors.Is(err, want))
}

func TestTailer_MissingDirectory(t *testing.T) {
	tl, err := NewTailer(filepath.Join(t.TempDir(), "nope", "app.log"), false, log.NewNoopLogger())
	require.NoError(t, err)
	assert.Error(t, tl.Run(context.Background(), func(string) error { return nil }))
}

func TestTailer_RereadsLineAfterEmitError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "a\nb\n")
	tl, err := NewTailer(path, true, log.NewNoopLogger())
	require.NoError(t, err)

	full := errors.New("disk full")
	var first []string
	err = tl.Run(context.Background(), func(line string) error {
		if line == "b" {
			return full
		}
		first = append(first, line)
		return nil
	})
	require.True(t, errors.Is(err, full))
	assert.Equal(t, []string{"a"}, first)

	c := &collector{}
	stop := runTailer(t, tl, c)
	defer stop()
	waitLines(t, c, []string{"b"})
}
