package ports

import "context"

// Sink is the ingestion endpoint batches are shipped to.
type Sink interface {
	// VerifyActive reports whether the named stream accepts records.
	// It is called once before delivery starts.
	VerifyActive(ctx context.Context, stream string) (bool, error)

	// Submit sends one batch payload and returns the acknowledgment id.
	// An empty id with a nil error is not a successful delivery; callers
	// treat it as a failure.
	Submit(ctx context.Context, payload []byte) (string, error)
}
