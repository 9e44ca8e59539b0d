package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	// It is returned uniformly for unknown IDs, unknown instances, and
	// cross-instance access so callers cannot probe for another instance's
	// data by distinguishing which field failed to match.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// QuotaError indicates that an operation was rejected because it would
// exceed a tier quota. It carries the specific limit and current usage so
// the caller can react (e.g. prompt an upgrade).
type QuotaError struct {
	Resource string  // e.g. "documents", "entities", "events"
	Limit    float64 // the tier limit that would be exceeded
	Used     float64 // current usage
	Unit     string  // e.g. "MB", "rows"
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %g/%g %s used", e.Resource, e.Used, e.Limit, e.Unit)
}

// IsQuotaError reports whether err is (or wraps) a QuotaError.
func IsQuotaError(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
