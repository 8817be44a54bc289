package domain

import "errors"

// Domain errors represent error conditions in the stageship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("stageship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("stageship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("stageship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("stageship: invalid configuration")

	// ErrStreamNotActive is returned at construction when the sink reports
	// the target stream is not ACTIVE.
	ErrStreamNotActive = errors.New("stageship: stream not active")

	// ErrEmptyAck is returned when a submission succeeds without an
	// acknowledgment id. It is handled like any other submission failure.
	ErrEmptyAck = errors.New("stageship: empty acknowledgment id")

	// ErrInvalidRecord is returned when a value cannot be encoded as a
	// single flat structured record.
	ErrInvalidRecord = errors.New("stageship: invalid record")

	// ErrInvalidBatchName is returned when a name does not follow the batch
	// file grammar.
	ErrInvalidBatchName = errors.New("stageship: invalid batch name")
)
