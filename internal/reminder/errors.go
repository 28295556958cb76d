package reminder

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
)

var (
	// ErrReminderScheduleFailed indicates a reminder job could not be handed
	// to the delayed queue. Any note state change made with it must roll back.
	ErrReminderScheduleFailed = errors.New("reminder schedule failed")

	// ErrNilDependency is returned by constructors given a nil collaborator.
	ErrNilDependency = errors.New("nil dependency")

	// ErrAlreadyStarted is returned when Start is called on a running loop.
	ErrAlreadyStarted = errors.New("already started")
)

// ReminderError adds the operation and note to a failed reminder step.
type ReminderError struct {
	Operation string
	NoteID    uuid.UUID
	Err       error
}

// Error implements the error interface for ReminderError.
func (e *ReminderError) Error() string {
	return fmt.Sprintf("reminder %s for note %s failed: %v", e.Operation, e.NoteID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ReminderError) Unwrap() error {
	return e.Err
}

func newReminderError(operation string, noteID uuid.UUID, err error) *ReminderError {
	return &ReminderError{Operation: operation, NoteID: noteID, Err: err}
}

// Outcome describes what one advance did to a note.
type Outcome string

const (
	// OutcomeAdvanced means a reminder was delivered and the next one armed
	OutcomeAdvanced Outcome = metrics.OutcomeAdvanced
	// OutcomeCompleted means the last reminder was delivered
	OutcomeCompleted Outcome = metrics.OutcomeCompleted
	// OutcomeDisabled means the user's alarm is off; nothing changed
	OutcomeDisabled Outcome = metrics.OutcomeDisabled
	// OutcomeNotDue means the note was not due when loaded
	OutcomeNotDue Outcome = metrics.OutcomeNotDue
	// OutcomeDuplicate means another trigger advanced the note first
	OutcomeDuplicate Outcome = metrics.OutcomeDuplicate
	// OutcomeStale means a broker job no longer matches the note
	OutcomeStale Outcome = metrics.OutcomeStale
)

// Delivered reports whether the outcome sent a notification.
func (o Outcome) Delivered() bool {
	return o == OutcomeAdvanced || o == OutcomeCompleted
}
