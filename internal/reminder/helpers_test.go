package reminder_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/mocks"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/reminder"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	notes     *mocks.MockNoteStore
	generator *mocks.MockQuestionGenerator
	notifier  *mocks.MockNotifier
	publisher *mocks.MockJobPublisher
	scheduler *reminder.Scheduler
	service   *reminder.Service
	now       time.Time
}

func newFixture(t *testing.T, m *metrics.Metrics) *fixture {
	t.Helper()
	return newFixtureAt(t, baseTime, m)
}

func newFixtureAt(t *testing.T, now time.Time, m *metrics.Metrics) *fixture {
	t.Helper()

	f := &fixture{
		notes:     mocks.NewMockNoteStore(),
		generator: &mocks.MockQuestionGenerator{Question: "What is the main idea?"},
		notifier:  &mocks.MockNotifier{},
		publisher: &mocks.MockJobPublisher{},
		now:       now,
	}
	clock := reminder.WithClock(func() time.Time { return f.now })

	var err error
	f.scheduler, err = reminder.NewScheduler(f.publisher, f.generator, nil, clock, reminder.WithMetrics(m))
	require.NoError(t, err)

	f.service, err = reminder.NewService(
		f.notes, f.generator, f.notifier, f.scheduler,
		domain.DefaultReminderPolicy(), nil,
		clock, reminder.WithMetrics(m),
	)
	require.NoError(t, err)
	return f
}

// addNote stores a note armed at remindAt (nil for unarmed) and returns it.
func (f *fixture) addNote(count int, remindAt *time.Time, alarm bool) *domain.Note {
	note := &domain.Note{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Title:        "Note " + uuid.NewString()[:8],
		Content:      "Some content worth remembering.",
		RemindAt:     remindAt,
		RemindCount:  count,
		AlarmEnabled: alarm,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	f.notes.Put(note)
	return note
}

// addDueNote stores an enabled note that fell due five seconds ago.
func (f *fixture) addDueNote(count int) *domain.Note {
	return f.addNote(count, timePtr(f.now.Add(-5*time.Second)), true)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
