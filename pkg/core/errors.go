package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// the dimension established by the store's first write.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrStoreClosed is returned when trying to use a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrValidation is returned when a record is malformed (empty id,
	// invalid vector, unencodable metadata).
	ErrValidation = errors.New("invalid record")

	// ErrEmptyQuery is returned when a search query vector is empty.
	ErrEmptyQuery = errors.New("empty query vector")
)

// StoreError wraps errors with operation context.
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vectorstore: %v", e.Err)
	}
	return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
