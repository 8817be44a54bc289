package domain

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Disposition is the terminal action applied to a delivered batch.
type Disposition int

const (
	// DispositionArchived moves the batch into the archived directory.
	DispositionArchived Disposition = iota
	// DispositionDeleted removes the batch file.
	DispositionDeleted
)

// String returns a human-readable representation of the disposition.
func (d Disposition) String() string {
	switch d {
	case DispositionArchived:
		return "archived"
	case DispositionDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Status is the delivery summary persisted after each cycle that changed it.
type Status struct {
	// LastBatch is the name of the last batch that was delivered
	LastBatch string `json:"last_batch"`

	// LastAckID is the acknowledgment id returned for LastBatch
	LastAckID string `json:"last_ack_id"`

	// LastChecksum is the xxhash64 of the payload submitted for LastBatch
	LastChecksum string `json:"last_checksum"`

	// LastDeliveredAt is when LastBatch was acknowledged
	LastDeliveredAt time.Time `json:"last_delivered_at"`

	// LastFailureAt is the time of the most recent failed submission
	LastFailureAt time.Time `json:"last_failure_at"`

	// Delivered counts acknowledged batches
	Delivered uint64 `json:"delivered"`

	// Failed counts failed submission attempts, including empty acks
	Failed uint64 `json:"failed"`
}

// RecordDelivery updates the status after an acknowledged submission.
func (s *Status) RecordDelivery(batch, ackID, checksum string, at time.Time) {
	s.LastBatch = batch
	s.LastAckID = ackID
	s.LastChecksum = checksum
	s.LastDeliveredAt = at
	s.Delivered++
}

// RecordFailure updates the status after a failed submission attempt.
func (s *Status) RecordFailure(at time.Time) {
	s.LastFailureAt = at
	s.Failed++
}

// Checksum returns the hex xxhash64 digest of a payload.
func Checksum(payload []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(payload))
}
