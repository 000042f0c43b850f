package errors

import (
	stdErrors "errors"
	"fmt"
)

// AdapterUnavailableError is returned when a catalog cannot be reached or answers with
// something other than a usable response: timeouts, connection failures, 5xx and other
// unexpected statuses, or a body that cannot be decoded.
type AdapterUnavailableError struct {
	Source     string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *AdapterUnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s unavailable (HTTP %d): %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *AdapterUnavailableError) Unwrap() error {
	return e.Err
}

// NewAdapterUnavailableError wraps err as an unavailability of source.
func NewAdapterUnavailableError(source string, statusCode int, err error) *AdapterUnavailableError {
	return &AdapterUnavailableError{Source: source, StatusCode: statusCode, Err: err}
}

// IsAdapterUnavailableError checks if error is an AdapterUnavailableError
func IsAdapterUnavailableError(err error) bool {
	var unavailableErr *AdapterUnavailableError
	return stdErrors.As(err, &unavailableErr)
}
