package errors

import stdErrors "errors"

// StopProcessingError is returned when the user stops an interactive session.
type StopProcessingError struct {
	Reason string
}

func (e *StopProcessingError) Error() string {
	if e.Reason == "" {
		return "stopped by user"
	}
	return e.Reason
}

// NewStopProcessingError creates a StopProcessingError with the provided reason.
func NewStopProcessingError(reason string) *StopProcessingError {
	return &StopProcessingError{Reason: reason}
}

// IsStopProcessingError reports whether err is a StopProcessingError (even when wrapped).
func IsStopProcessingError(err error) bool {
	var stopErr *StopProcessingError
	return stdErrors.As(err, &stopErr)
}
