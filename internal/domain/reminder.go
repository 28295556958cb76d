package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxReminders is the number of reminders delivered per cycle.
const DefaultMaxReminders = 3

// ErrInvalidPolicy is returned when a ReminderPolicy cannot drive a full cycle.
var ErrInvalidPolicy = errors.New("invalid reminder policy")

// ReminderPolicy holds the retry budget and the backoff table used to
// advance notes. Backoff[k] is the delay armed after the (k+1)th delivery.
type ReminderPolicy struct {
	MaxReminders int
	Backoff      []time.Duration
}

// DefaultReminderPolicy returns the development policy: three reminders
// spaced 30s and 70s apart.
func DefaultReminderPolicy() ReminderPolicy {
	return ReminderPolicy{
		MaxReminders: DefaultMaxReminders,
		Backoff:      []time.Duration{30 * time.Second, 70 * time.Second},
	}
}

// Validate checks that the backoff table covers every re-arming step.
func (p ReminderPolicy) Validate() error {
	if p.MaxReminders < 1 {
		return fmt.Errorf("%w: max reminders must be at least 1, got %d", ErrInvalidPolicy, p.MaxReminders)
	}

	if len(p.Backoff) < p.MaxReminders-1 {
		return fmt.Errorf("%w: backoff table has %d entries, need %d",
			ErrInvalidPolicy, len(p.Backoff), p.MaxReminders-1)
	}

	for i, d := range p.Backoff {
		if d <= 0 {
			return fmt.Errorf("%w: backoff[%d] must be positive, got %s", ErrInvalidPolicy, i, d)
		}
	}

	return nil
}

// DelayAfter returns the delay armed after a delivery made at remindCount.
// Indexes past the end of the table reuse the last entry.
func (p ReminderPolicy) DelayAfter(remindCount int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if remindCount < 0 {
		remindCount = 0
	}
	if remindCount >= len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[remindCount]
}

// ReminderJob is the immutable message placed on the delayed-delivery broker.
// It carries the question already generated for the reminder it wakes up.
type ReminderJob struct {
	ID            uuid.UUID `json:"id"`
	NoteID        uuid.UUID `json:"note_id"`
	UserID        uuid.UUID `json:"user_id"`
	Title         string    `json:"title"`
	Question      string    `json:"question"`
	ScheduledTime time.Time `json:"scheduled_time"`
	AttemptCount  int       `json:"attempt_count"`
}

// NewReminderJob snapshots an armed note into a job.
func NewReminderJob(note *Note, question string) (*ReminderJob, error) {
	if note.ID == uuid.Nil {
		return nil, ErrEmptyNoteID
	}
	if note.RemindAt == nil {
		return nil, fmt.Errorf("%w: note %s is not armed", ErrValidation, note.ID)
	}

	return &ReminderJob{
		ID:            uuid.New(),
		NoteID:        note.ID,
		UserID:        note.UserID,
		Title:         note.Title,
		Question:      question,
		ScheduledTime: note.RemindAt.UTC(),
		AttemptCount:  note.RemindCount,
	}, nil
}

// ReminderNotification is the payload pushed to the user's real-time topic.
type ReminderNotification struct {
	NoteID      uuid.UUID `json:"note_id"`
	Title       string    `json:"title"`
	Question    string    `json:"question"`
	RemindCount int       `json:"remind_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// ReminderTopic returns the pub/sub topic a user's reminders are published on.
func ReminderTopic(userID uuid.UUID) string {
	return "reminder/" + userID.String()
}
