/*
errors.go - Error types for the metrics engine

PURPOSE:
  Sentinel and structured errors shared by the resolver, stores and clients.

ERROR CATEGORIES:
  1. Input errors     - bad month/year/fin-year (surface as HTTP 400)
  2. Transport errors - non-2xx from upstream or the remote cache

  Absence of data is NOT an error anywhere in this package: lookups return
  (nil, nil) and callers render "no data".

SEE ALSO:
  - resolver.go: logs transport errors and falls through to the next tier
*/
package mgnrega

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidMonth is returned for a month outside 1-12.
	ErrInvalidMonth = errors.New("invalid month: must be 1-12")

	// ErrInvalidYear is returned for a non-positive year.
	ErrInvalidYear = errors.New("invalid year")

	// ErrUnknownMonthName is returned when a stored month label is not one
	// of the twelve canonical short names.
	ErrUnknownMonthName = errors.New("unknown month name")

	// ErrInvalidFinYear is returned for a financial year not shaped "YYYY-YYYY+1".
	ErrInvalidFinYear = errors.New("invalid financial year")

	// ErrUpstreamStatus is returned when the open-data API answers non-2xx.
	ErrUpstreamStatus = errors.New("upstream returned non-success status")

	// ErrCacheStatus is returned when the remote cache answers non-2xx on write.
	ErrCacheStatus = errors.New("cache returned non-success status")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// UpstreamError carries the status and a truncated body of a failed call.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamStatus
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidYear) ||
		errors.Is(err, ErrInvalidFinYear)
}
