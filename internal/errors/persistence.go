package errors

import (
	stdErrors "errors"
	"fmt"
)

// PersistenceConflictError is returned when the store could not complete a write because
// another writer held the database or a constraint was violated concurrently.
type PersistenceConflictError struct {
	Op  string
	Err error
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("persistence conflict during %s: %v", e.Op, e.Err)
}

func (e *PersistenceConflictError) Unwrap() error {
	return e.Err
}

// NewPersistenceConflictError wraps err as a conflict during op.
func NewPersistenceConflictError(op string, err error) *PersistenceConflictError {
	return &PersistenceConflictError{Op: op, Err: err}
}

// IsPersistenceConflictError checks if error is a PersistenceConflictError
func IsPersistenceConflictError(err error) bool {
	var conflictErr *PersistenceConflictError
	return stdErrors.As(err, &conflictErr)
}
