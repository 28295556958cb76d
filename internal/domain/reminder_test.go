package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderPolicyValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  ReminderPolicy
		wantErr bool
	}{
		{name: "default", policy: DefaultReminderPolicy()},
		{name: "single reminder needs no backoff", policy: ReminderPolicy{MaxReminders: 1}},
		{
			name:    "zero reminders",
			policy:  ReminderPolicy{MaxReminders: 0},
			wantErr: true,
		},
		{
			name:    "table too short",
			policy:  ReminderPolicy{MaxReminders: 3, Backoff: []time.Duration{time.Second}},
			wantErr: true,
		},
		{
			name:    "non-positive entry",
			policy:  ReminderPolicy{MaxReminders: 3, Backoff: []time.Duration{time.Second, 0}},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReminderPolicyDelayAfter(t *testing.T) {
	t.Parallel()

	p := ReminderPolicy{
		MaxReminders: 4,
		Backoff:      []time.Duration{24 * time.Hour, 72 * time.Hour},
	}

	assert.Equal(t, 24*time.Hour, p.DelayAfter(0))
	assert.Equal(t, 72*time.Hour, p.DelayAfter(1))
	assert.Equal(t, 72*time.Hour, p.DelayAfter(5), "past the table reuses the last entry")
	assert.Equal(t, 24*time.Hour, p.DelayAfter(-1))
	assert.Equal(t, time.Duration(0), ReminderPolicy{}.DelayAfter(0))
}

func TestNewReminderJob(t *testing.T) {
	t.Parallel()

	at := time.Now().Add(time.Minute)
	note := &Note{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Title:       "Raft",
		RemindAt:    &at,
		RemindCount: 1,
	}

	job, err := NewReminderJob(note, "What does a follower do on election timeout?")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, note.ID, job.NoteID)
	assert.Equal(t, note.UserID, job.UserID)
	assert.Equal(t, "Raft", job.Title)
	assert.Equal(t, 1, job.AttemptCount)
	assert.True(t, at.Equal(job.ScheduledTime))

	note.RemindAt = nil
	_, err = NewReminderJob(note, "q")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReminderTopic(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	assert.Equal(t, "reminder/7d444840-9dc0-11d1-b245-5ffdce74fad2", ReminderTopic(id))
}
