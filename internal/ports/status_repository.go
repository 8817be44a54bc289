package ports

import (
	"context"

	"github.com/bft-labs/stageship/internal/domain"
)

// StatusRepository persists the delivery status.
type StatusRepository interface {
	// Load retrieves the last saved status.
	// Returns an empty status and nil error if none exists.
	Load(ctx context.Context) (domain.Status, error)

	// Save persists the status atomically.
	Save(ctx context.Context, status domain.Status) error
}
