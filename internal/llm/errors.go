package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks a transient backend failure. It is the only error retried.
	ErrRateLimited = errors.New("rate limited")

	// ErrQueryExhausted is returned once every retry attempt was rate limited.
	ErrQueryExhausted = errors.New("query exhausted")
)

// ValidationError reports a response that does not satisfy the query's schema or names a
// taxonomy entry the caller does not know. It is never retried.
type ValidationError struct {
	Query  string
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: invalid response: %s", e.Query, e.Reason)
	}
	return fmt.Sprintf("%s: invalid response for key %q: %s", e.Query, e.Key, e.Reason)
}

func rateLimited(err error) error {
	return fmt.Errorf("%w: %w", ErrRateLimited, err)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
