package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimestampDigits is the width of the timestamp part of a batch name.
const TimestampDigits = 17

// DefaultPrefix is the literal every batch name starts with unless configured.
const DefaultPrefix = "out"

// timestampLayout renders YYYYMMDDHHMMSS.mmm; the dot is dropped in names.
const timestampLayout = "20060102150405.000"

// BatchName is the file name of a batch: a literal prefix immediately
// followed by a 17 digit UTC timestamp at millisecond resolution.
type BatchName struct {
	Prefix string
	Time   time.Time
}

// NewBatchName truncates t to the name resolution.
func NewBatchName(prefix string, t time.Time) BatchName {
	return BatchName{Prefix: prefix, Time: t.UTC().Truncate(time.Millisecond)}
}

// String renders the file name.
func (n BatchName) String() string {
	ts := n.Time.UTC().Format(timestampLayout)
	return n.Prefix + strings.Replace(ts, ".", "", 1)
}

// Next returns the name one resolution unit later.
func (n BatchName) Next() BatchName {
	return BatchName{Prefix: n.Prefix, Time: n.Time.Add(time.Millisecond)}
}

// IsBatchName reports whether name is exactly prefix followed by
// TimestampDigits decimal digits.
func IsBatchName(prefix, name string) bool {
	if len(name) != len(prefix)+TimestampDigits || !strings.HasPrefix(name, prefix) {
		return false
	}
	for i := len(prefix); i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return false
		}
	}
	return true
}

// ParseBatchName parses a file name produced by BatchName.String.
func ParseBatchName(prefix, name string) (BatchName, error) {
	if !IsBatchName(prefix, name) {
		return BatchName{}, fmt.Errorf("%w: %q", ErrInvalidBatchName, name)
	}
	digits := name[len(prefix):]
	t, err := time.Parse(timestampLayout, digits[:14]+"."+digits[14:])
	if err != nil {
		return BatchName{}, fmt.Errorf("%w: %q: %v", ErrInvalidBatchName, name, err)
	}
	return BatchName{Prefix: prefix, Time: t}, nil
}
