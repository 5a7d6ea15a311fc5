package jobstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job record does not exist or has expired.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a record fails basic checks.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned when attempting to use a closed store.
	ErrClosed = errors.New("store is closed")
)

// NotFoundError wraps ErrNotFound with the missing job id.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidInputError wraps ErrInvalidInput with the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
