package errors

import (
	stdErrors "errors"
	"fmt"
)

// NotFoundError is returned when a catalog or the local store has no record for an id.
type NotFoundError struct {
	Source     string
	ExternalID string
}

func (e *NotFoundError) Error() string {
	if e.ExternalID == "" {
		return fmt.Sprintf("%s: not found", e.Source)
	}
	return fmt.Sprintf("%s: %s not found", e.Source, e.ExternalID)
}

// NewNotFoundError creates a NotFoundError for the given key.
func NewNotFoundError(source, externalID string) *NotFoundError {
	return &NotFoundError{Source: source, ExternalID: externalID}
}

// IsNotFoundError checks if error is a NotFoundError
func IsNotFoundError(err error) bool {
	var notFoundErr *NotFoundError
	return stdErrors.As(err, &notFoundErr)
}
