package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Note
var (
	ErrEmptyNoteID        = errors.New("note ID cannot be empty")
	ErrEmptyNoteUserID    = errors.New("note user ID cannot be empty")
	ErrInvalidRemindCount = errors.New("invalid remind count")
	ErrCompleteNoteArmed  = errors.New("completed note cannot have a reminder time")
)

// Note is the reminder-relevant view of a user's note. Title and Content are
// read-only context for question generation; RemindAt and RemindCount are the
// reminder state owned by this service. AlarmEnabled is a user-level
// preference joined in by the store and never written back.
type Note struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	RemindAt     *time.Time `json:"remind_at,omitempty"`
	RemindCount  int        `json:"remind_count"`
	AlarmEnabled bool       `json:"alarm_enabled"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewNote creates an unarmed note for the given user.
func NewNote(userID uuid.UUID, title, content string) (*Note, error) {
	now := time.Now().UTC()
	note := &Note{
		ID:           uuid.New(),
		UserID:       userID,
		Title:        title,
		Content:      content,
		AlarmEnabled: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := note.Validate(DefaultMaxReminders); err != nil {
		return nil, err
	}

	return note, nil
}

// Validate checks the note identity and the reminder invariant:
// remindCount stays within [0, maxReminders] and a completed note is unarmed.
func (n *Note) Validate(maxReminders int) error {
	if n.ID == uuid.Nil {
		return ErrEmptyNoteID
	}

	if n.UserID == uuid.Nil {
		return ErrEmptyNoteUserID
	}

	if n.RemindCount < 0 || n.RemindCount > maxReminders {
		return ErrInvalidRemindCount
	}

	if n.RemindCount == maxReminders && n.RemindAt != nil {
		return ErrCompleteNoteArmed
	}

	return nil
}

// IsArmed reports whether a reminder time is set.
func (n *Note) IsArmed() bool {
	return n.RemindAt != nil
}

// IsComplete reports whether the reminder cycle has been exhausted.
func (n *Note) IsComplete(maxReminders int) bool {
	return n.RemindCount >= maxReminders
}

// IsDue reports whether the note is armed, has budget left and its
// reminder time is not after now.
func (n *Note) IsDue(now time.Time, maxReminders int) bool {
	if n.RemindAt == nil || n.IsComplete(maxReminders) {
		return false
	}
	return !n.RemindAt.After(now)
}

// Arm schedules the first reminder of a new cycle.
func (n *Note) Arm(at time.Time) {
	at = at.UTC()
	n.RemindAt = &at
	n.RemindCount = 0
	n.UpdatedAt = time.Now().UTC()
}

// NextReminder computes the state the note moves to after one delivery at now.
// It does not modify the note.
func (n *Note) NextReminder(now time.Time, policy ReminderPolicy) ReminderAdvance {
	if n.RemindCount >= policy.MaxReminders-1 {
		return ReminderAdvance{
			PreviousCount: n.RemindCount,
			RemindCount:   policy.MaxReminders,
			RemindAt:      nil,
		}
	}

	next := now.UTC().Add(policy.DelayAfter(n.RemindCount))
	return ReminderAdvance{
		PreviousCount: n.RemindCount,
		RemindCount:   n.RemindCount + 1,
		RemindAt:      &next,
	}
}

// ApplyAdvance moves the note to the given state.
func (n *Note) ApplyAdvance(adv ReminderAdvance) {
	n.RemindCount = adv.RemindCount
	if adv.RemindAt == nil {
		n.RemindAt = nil
	} else {
		at := *adv.RemindAt
		n.RemindAt = &at
	}
	n.UpdatedAt = time.Now().UTC()
}

// ReminderAdvance is the outcome of one delivery cycle.
type ReminderAdvance struct {
	// PreviousCount is the remindCount the advance was computed from
	PreviousCount int
	// RemindCount is the post-delivery count
	RemindCount int
	// RemindAt is the next reminder time, nil when the cycle is complete
	RemindAt *time.Time
}

// Completed reports whether this advance ends the reminder cycle.
func (a ReminderAdvance) Completed() bool {
	return a.RemindAt == nil
}
