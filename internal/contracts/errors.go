package contracts

import (
	"context"
	"errors"
)

var (
	// ErrSourceUnavailable is a transient upstream failure; retryable
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInsufficientHistory means too few closes to build a record; not retried
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrPartialData means fundamentals are missing but the record is usable
	ErrPartialData = errors.New("partial data")

	// ErrAlreadyRunning is returned when a refresh is triggered while one is active
	ErrAlreadyRunning = errors.New("refresh already running")

	// ErrScoringFault marks a record whose scoring failed
	ErrScoringFault = errors.New("scoring fault")
)

// IsRetryable reports whether a fetch error is worth another attempt.
// A per-attempt timeout counts as transient; a cancelled parent context does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInsufficientHistory) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
