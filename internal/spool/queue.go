package spool

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/stageship/internal/domain"
	"github.com/bft-labs/stageship/internal/ports"
	"github.com/bft-labs/stageship/pkg/log"
)

// State directory names, relative to the queue root.
const (
	StagingDir  = "staging"
	PendingDir  = "pending"
	ArchivedDir = "archived"
)

// Options configures a Queue.
type Options struct {
	// Root is the directory holding the state directories.
	Root string

	// Prefix is the literal batch names start with. Default: "out"
	Prefix string

	// MaxRows is the row count at which a staging batch is promoted.
	MaxRows int

	// KeepDelivered moves delivered batches to archived/ instead of
	// deleting them.
	KeepDelivered bool

	// Now is the clock used to stamp new batch names. Default: time.Now
	Now func() time.Time

	// Logger receives promotion and disposition messages.
	Logger ports.Logger

	// OnPromote is called after a batch has been moved to pending.
	OnPromote func(name string, rows int)
}

// Queue owns the state directories and the rules for moving batch files
// between them. It also decides which staging file is the active one.
type Queue struct {
	root          string
	prefix        string
	maxRows       int
	keepDelivered bool
	now           func() time.Time
	logger        ports.Logger
	onPromote     func(string, int)

	mu     sync.Mutex
	active string
	last   domain.BatchName
}

// BatchFile describes one batch file on disk.
type BatchFile struct {
	Name string
	Size int64
}

// Counts is the number of batch files per state directory.
type Counts struct {
	Staging  int `json:"staging"`
	Pending  int `json:"pending"`
	Archived int `json:"archived"`
}

// NewQueue creates a Queue. It does not touch the filesystem.
func NewQueue(opts Options) (*Queue, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("%w: queue root is required", domain.ErrInvalidConfig)
	}
	if opts.MaxRows < 1 {
		return nil, fmt.Errorf("%w: max rows must be at least 1, got %d", domain.ErrInvalidConfig, opts.MaxRows)
	}
	if opts.Prefix == "" {
		opts.Prefix = domain.DefaultPrefix
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Queue{
		root:          opts.Root,
		prefix:        opts.Prefix,
		maxRows:       opts.MaxRows,
		keepDelivered: opts.KeepDelivered,
		now:           opts.Now,
		logger:        opts.Logger,
		onPromote:     opts.OnPromote,
	}, nil
}

func (q *Queue) StagingPath() string  { return filepath.Join(q.root, StagingDir) }
func (q *Queue) PendingPath() string  { return filepath.Join(q.root, PendingDir) }
func (q *Queue) ArchivedPath() string { return filepath.Join(q.root, ArchivedDir) }

// Prefix returns the batch name prefix.
func (q *Queue) Prefix() string { return q.prefix }

// KeepDelivered reports whether delivered batches are archived.
func (q *Queue) KeepDelivered() bool { return q.keepDelivered }

// EnsureDirectories creates the state directories if they are missing.
// archived/ is only created when delivered batches are kept.
func (q *Queue) EnsureDirectories() error {
	dirs := []string{q.StagingPath(), q.PendingPath()}
	if q.keepDelivered {
		dirs = append(dirs, q.ArchivedPath())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Active returns the name of the current append target, or "" before the
// first scan.
func (q *Queue) Active() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// ScanAndPromote moves every staging batch holding at least MaxRows rows to
// pending and selects the active batch for the next append.
//
// The active batch is the last below-threshold batch in listing order. When
// none is left a new name is issued; the file itself is created by the
// first append.
func (q *Queue) ScanAndPromote() (string, error) {
	if err := q.EnsureDirectories(); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(q.StagingPath())
	if err != nil {
		return "", fmt.Errorf("list staging: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var active string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !domain.IsBatchName(q.prefix, name) {
			continue
		}
		q.observe(name)

		rows, err := countRows(filepath.Join(q.StagingPath(), name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("count rows of %s: %w", name, err)
		}
		if rows < q.maxRows {
			active = name
			continue
		}
		if err := q.promote(name); err != nil {
			return "", err
		}
		q.logger.Info("batch ready to be sent", ports.String("batch", name), ports.Int("rows", rows))
		if q.onPromote != nil {
			q.onPromote(name, rows)
		}
	}

	if active == "" {
		active = q.nextName()
	}
	q.active = active
	return active, nil
}

func (q *Queue) promote(name string) error {
	src := filepath.Join(q.StagingPath(), name)
	dst := filepath.Join(q.PendingPath(), name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("promote %s: %w", name, err)
	}
	syncDir(q.PendingPath())
	return nil
}

// observe remembers the newest name seen so issued names stay ahead of it.
func (q *Queue) observe(name string) {
	n, err := domain.ParseBatchName(q.prefix, name)
	if err != nil {
		return
	}
	if n.Time.After(q.last.Time) {
		q.last = n
	}
}

// nextName issues a name that is newer than every name issued or observed
// so far and that no state directory holds yet. Callers hold q.mu.
func (q *Queue) nextName() string {
	n := domain.NewBatchName(q.prefix, q.now())
	if !q.last.Time.IsZero() && !n.Time.After(q.last.Time) {
		n = q.last.Next()
	}
	for q.exists(n.String()) {
		n = n.Next()
	}
	q.last = n
	return n.String()
}

func (q *Queue) exists(name string) bool {
	for _, dir := range []string{q.StagingPath(), q.PendingPath(), q.ArchivedPath()} {
		if _, err := os.Lstat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// Pending lists the batch names waiting for delivery in directory listing
// order. Entries that do not follow the batch name grammar are ignored.
func (q *Queue) Pending() ([]string, error) {
	files, err := q.list(q.PendingPath())
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names, nil
}

// ReadPending returns the content of a pending batch.
func (q *Queue) ReadPending(name string) ([]byte, error) {
	if !domain.IsBatchName(q.prefix, name) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidBatchName, name)
	}
	return os.ReadFile(filepath.Join(q.PendingPath(), name))
}

// Dispose applies the delivery disposition to a pending batch: it is moved
// to archived/ under the same name, or deleted when delivered batches are
// not kept.
func (q *Queue) Dispose(name string) (domain.Disposition, error) {
	src := filepath.Join(q.PendingPath(), name)
	if !q.keepDelivered {
		if err := os.Remove(src); err != nil {
			return domain.DispositionDeleted, fmt.Errorf("delete %s: %w", name, err)
		}
		return domain.DispositionDeleted, nil
	}
	if err := os.MkdirAll(q.ArchivedPath(), 0o755); err != nil {
		return domain.DispositionArchived, fmt.Errorf("create %s: %w", q.ArchivedPath(), err)
	}
	if err := os.Rename(src, filepath.Join(q.ArchivedPath(), name)); err != nil {
		return domain.DispositionArchived, fmt.Errorf("archive %s: %w", name, err)
	}
	syncDir(q.ArchivedPath())
	return domain.DispositionArchived, nil
}

// Archived lists archived batches, oldest first. A missing archived/
// directory yields an empty list.
func (q *Queue) Archived() ([]BatchFile, error) {
	files, err := q.list(q.ArchivedPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// RemoveArchived deletes one archived batch.
func (q *Queue) RemoveArchived(name string) error {
	if !domain.IsBatchName(q.prefix, name) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidBatchName, name)
	}
	return os.Remove(filepath.Join(q.ArchivedPath(), name))
}

// Counts returns the number of batch files in each state directory.
// Missing directories count as empty.
func (q *Queue) Counts() (Counts, error) {
	var c Counts
	for _, d := range []struct {
		dir string
		n   *int
	}{
		{q.StagingPath(), &c.Staging},
		{q.PendingPath(), &c.Pending},
		{q.ArchivedPath(), &c.Archived},
	} {
		files, err := q.list(d.dir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Counts{}, err
		}
		*d.n = len(files)
	}
	return c, nil
}

func (q *Queue) list(dir string) ([]BatchFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []BatchFile
	for _, e := range entries {
		if !e.Type().IsRegular() || !domain.IsBatchName(q.prefix, e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, BatchFile{Name: e.Name(), Size: info.Size()})
	}
	return out, nil
}

// countRows counts newline terminated rows plus a trailing unterminated one.
func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	rows := 0
	var last byte = '\n'
	for {
		n, err := f.Read(buf)
		if n > 0 {
			rows += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if last != '\n' {
		rows++
	}
	return rows, nil
}

// syncDir flushes a directory entry change to disk. Best effort: some
// platforms cannot fsync directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
