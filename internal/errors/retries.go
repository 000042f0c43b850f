package errors

import (
	stdErrors "errors"
	"fmt"
)

// RetriesExhaustedError is the terminal failure of a retry policy that ran out of attempts.
type RetriesExhaustedError struct {
	Policy  string
	Retries int
	Err     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s policy gave up after %d retries: %v", e.Policy, e.Retries, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// NewRetriesExhaustedError wraps the last error seen by a policy.
func NewRetriesExhaustedError(policy string, retries int, err error) *RetriesExhaustedError {
	return &RetriesExhaustedError{Policy: policy, Retries: retries, Err: err}
}

// IsRetriesExhaustedError checks if error is a RetriesExhaustedError
func IsRetriesExhaustedError(err error) bool {
	var exhaustedErr *RetriesExhaustedError
	return stdErrors.As(err, &exhaustedErr)
}

// IsRetryable reports whether err is transient: a rate limit or an unavailable catalog
// that has not already been given up on.
func IsRetryable(err error) bool {
	if err == nil || IsRetriesExhaustedError(err) {
		return false
	}
	return IsRateLimitError(err) || IsAdapterUnavailableError(err)
}
