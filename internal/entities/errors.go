package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingLocator means no bucket or no object name could be produced
	// from the event payload by any resolution rule.
	ErrMissingLocator = errors.New("no bucket/name could be resolved from payload")

	// ErrUnauthorized covers a bad bearer token or a disallowed origin.
	ErrUnauthorized = errors.New("unauthorized")
)

// WorkerError is a failed call to the external compression worker. TooLarge
// marks the worker's explicit refusal to process an oversized object; it is
// non-retryable and must stay distinguishable from a generic failure.
type WorkerError struct {
	Message  string
	TooLarge bool
}

func (e *WorkerError) Error() string {
	if e.TooLarge {
		return "worker refused object: too large"
	}
	return fmt.Sprintf("worker failed: %s", e.Message)
}

// IsTooLarge reports whether err is a worker too-large refusal.
func IsTooLarge(err error) bool {
	var we *WorkerError
	return errors.As(err, &we) && we.TooLarge
}
