package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrNoteNotFound is ErrNotFound for notes.
	ErrNoteNotFound = fmt.Errorf("%w: note", ErrNotFound)

	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when a note fails validation or a database
	// constraint before being stored. The wrapped error names the rule.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed wraps failures to begin, commit or roll back.
	// Errors returned by the transaction body are not wrapped.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConcurrentUpdate is returned when a locked re-read finds the reminder
	// state changed since it was first read.
	ErrConcurrentUpdate = errors.New("entity modified concurrently")
)

// IsNotFoundError reports whether err is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
