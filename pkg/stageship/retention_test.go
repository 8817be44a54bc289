package stageship

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/stageship/internal/spool"
	"github.com/bft-labs/stageship/pkg/log"
)

func newRetentionQueue(t *testing.T) *spool.Queue {
	t.Helper()
	q, err := spool.NewQueue(spool.Options{
		Root:          t.TempDir(),
		MaxRows:       10,
		KeepDelivered: true,
	})
	require.NoError(t, err)
	require.NoError(t, q.EnsureDirectories())
	return q
}

func writeSized(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Repeat("x", size)), 0o644))
}

func TestWithArchiveRetention_Defaults(t *testing.T) {
	var o options
	WithArchiveRetention(RetentionConfig{Enabled: true})(&o)

	require.NotNil(t, o.retention)
	assert.Equal(t, DefaultRetentionInterval, o.retention.CheckInterval)
	assert.Equal(t, int64(DefaultHighWatermark), o.retention.HighWatermark)
	assert.Equal(t, int64(DefaultLowWatermark), o.retention.LowWatermark)
	assert.Equal(t, int64(768<<20), o.retention.LowWatermark)
}

func TestWithArchiveRetention_Disabled(t *testing.T) {
	var o options
	WithArchiveRetention(RetentionConfig{})(&o)
	assert.Nil(t, o.retention)
}

func TestRetention_RemovesOldestUntilLowWatermark(t *testing.T) {
	q := newRetentionQueue(t)
	names := []string{
		"out20180621000000000",
		"out20180621000000001",
		"out20180621000000002",
		"out20180621000000003",
	}
	// write newest first so listing order cannot be relied on
	for i := len(names) - 1; i >= 0; i-- {
		writeSized(t, q.ArchivedPath(), names[i], 100)
	}
	writeSized(t, q.PendingPath(), "out20170101000000000", 1000)
	writeSized(t, q.StagingPath(), "out20170101000000001", 1000)

	r := newRetentionRunner(RetentionConfig{HighWatermark: 350, LowWatermark: 200}, q, log.NewNoopLogger())
	freed := r.runOnce(context.Background())
	assert.Equal(t, int64(200), freed)

	files, err := q.Archived()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, names[2], files[0].Name)
	assert.Equal(t, names[3], files[1].Name)

	assert.FileExists(t, filepath.Join(q.PendingPath(), "out20170101000000000"))
	assert.FileExists(t, filepath.Join(q.StagingPath(), "out20170101000000001"))
}

func TestRetention_BelowHighWatermarkKeepsEverything(t *testing.T) {
	q := newRetentionQueue(t)
	writeSized(t, q.ArchivedPath(), "out20180621000000000", 100)
	writeSized(t, q.ArchivedPath(), "out20180621000000001", 100)

	r := newRetentionRunner(RetentionConfig{HighWatermark: 200, LowWatermark: 50}, q, log.NewNoopLogger())
	assert.Zero(t, r.runOnce(context.Background()))

	files, err := q.Archived()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestRetention_IgnoresForeignFiles(t *testing.T) {
	q := newRetentionQueue(t)
	writeSized(t, q.ArchivedPath(), "notes.txt", 1000)
	writeSized(t, q.ArchivedPath(), "out20180621000000000", 10)

	r := newRetentionRunner(RetentionConfig{HighWatermark: 5, LowWatermark: 1}, q, log.NewNoopLogger())
	r.runOnce(context.Background())

	assert.FileExists(t, filepath.Join(q.ArchivedPath(), "notes.txt"))
	assert.NoFileExists(t, filepath.Join(q.ArchivedPath(), "out20180621000000000"))
}

func TestRetention_StartStop(t *testing.T) {
	q := newRetentionQueue(t)
	writeSized(t, q.ArchivedPath(), "out20180621000000000", 100)

	r := newRetentionRunner(RetentionConfig{
		CheckInterval: time.Hour,
		HighWatermark: 10,
		LowWatermark:  5,
	}, q, log.NewNoopLogger())
	r.start(context.Background())

	// the first pass runs immediately on start
	assert.Eventually(t, func() bool {
		files, err := q.Archived()
		return err == nil && len(files) == 0
	}, time.Second, 5*time.Millisecond)

	r.stop()
}
