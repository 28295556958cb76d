package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/generation"
	"github.com/phrazzld/scry-notes/internal/mocks"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/reminder"
	"github.com/phrazzld/scry-notes/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_StateMachine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		count       int
		wantCount   int
		wantDelay   time.Duration
		wantOutcome reminder.Outcome
	}{
		{name: "first reminder", count: 0, wantCount: 1, wantDelay: 30 * time.Second, wantOutcome: reminder.OutcomeAdvanced},
		{name: "second reminder", count: 1, wantCount: 2, wantDelay: 70 * time.Second, wantOutcome: reminder.OutcomeAdvanced},
		{name: "final reminder", count: 2, wantCount: 3, wantOutcome: reminder.OutcomeCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			note := f.addDueNote(tt.count)

			outcome, err := f.service.Advance(context.Background(), note.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)

			saved := f.notes.Get(note.ID)
			assert.Equal(t, tt.wantCount, saved.RemindCount)

			sent := f.notifier.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, note.UserID, sent[0].UserID)
			assert.Equal(t, note.ID, sent[0].Notification.NoteID)
			assert.Equal(t, note.Title, sent[0].Notification.Title)
			assert.Equal(t, "What is the main idea?", sent[0].Notification.Question)
			assert.Equal(t, tt.wantCount, sent[0].Notification.RemindCount)
			assert.Equal(t, f.now, sent[0].Notification.Timestamp)

			published := f.publisher.Published()
			if tt.wantOutcome == reminder.OutcomeCompleted {
				assert.Nil(t, saved.RemindAt)
				assert.Empty(t, published, "a completed note schedules nothing")
				assert.Equal(t, 1, f.generator.Calls())
				return
			}

			require.NotNil(t, saved.RemindAt)
			assert.Equal(t, f.now.Add(tt.wantDelay), *saved.RemindAt)

			require.Len(t, published, 1)
			job := published[0].Job
			assert.Equal(t, note.ID, job.NoteID)
			assert.Equal(t, note.UserID, job.UserID)
			assert.Equal(t, tt.wantCount, job.AttemptCount)
			assert.Equal(t, f.now.Add(tt.wantDelay), job.ScheduledTime)
			assert.Equal(t, tt.wantDelay, published[0].Delay)
			assert.Equal(t, 2, f.generator.Calls(), "one question delivered, one carried by the next job")
		})
	}
}

func TestAdvance_AlarmDisabledLeavesNoteUnchanged(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	note := f.addNote(1, timePtr(f.now.Add(-time.Minute)), false)

	outcome, err := f.service.Advance(context.Background(), note.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeDisabled, outcome)

	saved := f.notes.Get(note.ID)
	assert.Equal(t, 1, saved.RemindCount)
	assert.Equal(t, *note.RemindAt, *saved.RemindAt)
	assert.Empty(t, f.notifier.Sent())
	assert.Empty(t, f.publisher.Published())
	assert.Zero(t, f.generator.Calls())
	assert.Zero(t, f.notes.SaveCalls)
}

func TestAdvance_NotDue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		count    int
		remindAt func(now time.Time) *time.Time
	}{
		{name: "future reminder", count: 0, remindAt: func(now time.Time) *time.Time { return timePtr(now.Add(time.Hour)) }},
		{name: "unarmed", count: 0, remindAt: func(time.Time) *time.Time { return nil }},
		{name: "cycle complete", count: domain.DefaultMaxReminders, remindAt: func(time.Time) *time.Time { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			note := f.addNote(tt.count, tt.remindAt(f.now), true)

			outcome, err := f.service.Advance(context.Background(), note.ID)
			require.NoError(t, err)
			assert.Equal(t, reminder.OutcomeNotDue, outcome)
			assert.Empty(t, f.notifier.Sent())
			assert.Zero(t, f.notes.SaveCalls)
		})
	}
}

func TestAdvance_NotifyFailureLeavesNoteUnchanged(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	notifyErr := errors.New("pubsub unavailable")
	f.notifier.Err = notifyErr
	note := f.addDueNote(0)

	_, err := f.service.Advance(context.Background(), note.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, notifyErr)

	var reminderErr *reminder.ReminderError
	require.ErrorAs(t, err, &reminderErr)
	assert.Equal(t, "notify", reminderErr.Operation)
	assert.Equal(t, note.ID, reminderErr.NoteID)

	saved := f.notes.Get(note.ID)
	assert.Equal(t, 0, saved.RemindCount)
	assert.Equal(t, *note.RemindAt, *saved.RemindAt)
	assert.Empty(t, f.publisher.Published())
}

func TestAdvance_PublishFailureRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	brokerErr := errors.New("broker down")
	f.publisher.Err = brokerErr
	note := f.addDueNote(0)

	_, err := f.service.Advance(context.Background(), note.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, reminder.ErrReminderScheduleFailed)
	assert.ErrorIs(t, err, brokerErr)

	saved := f.notes.Get(note.ID)
	assert.Equal(t, 0, saved.RemindCount, "the save is rolled back with the failed publish")
	assert.Equal(t, *note.RemindAt, *saved.RemindAt)
	assert.Equal(t, 1, f.notes.RolledBackTx)
	assert.Zero(t, f.notes.CommittedTx)
}

func TestAdvance_SaveFailureLeavesNoteUnchanged(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.notes.SaveErr = store.ErrTransactionFailed
	note := f.addDueNote(1)

	_, err := f.service.Advance(context.Background(), note.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.Equal(t, 1, f.notes.Get(note.ID).RemindCount)
	assert.Empty(t, f.publisher.Published())
}

func TestAdvance_UnknownNote(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	_, err := f.service.Advance(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNoteNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestAdvance_ConcurrentChangeIsDuplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	note := f.addDueNote(0)

	// Another trigger advanced the note between the read and the lock.
	f.notes.FindByIDForUpdateFn = func(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
		moved := f.notes.Get(id)
		moved.RemindCount = 1
		moved.RemindAt = timePtr(f.now.Add(30 * time.Second))
		return moved, nil
	}

	outcome, err := f.service.Advance(context.Background(), note.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeDuplicate, outcome)
	assert.Zero(t, f.notes.SaveCalls)
	assert.Empty(t, f.publisher.Published())
}

func TestAdvance_ConcurrentAdvancesPersistOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	note := f.addDueNote(0)

	const callers = 8
	outcomes := make([]reminder.Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.service.Advance(context.Background(), note.ID)
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	delivered := 0
	for _, out := range outcomes {
		if out.Delivered() {
			delivered++
		} else {
			assert.Contains(t, []reminder.Outcome{reminder.OutcomeDuplicate, reminder.OutcomeNotDue}, out)
		}
	}
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, f.notes.Get(note.ID).RemindCount)
	assert.Len(t, f.publisher.Published(), 1)
}

func TestAdvance_RepeatedAdvancesNeverExceedBudget(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	note := f.addDueNote(0)

	for i := 0; i < 10; i++ {
		_, err := f.service.Advance(context.Background(), note.ID)
		require.NoError(t, err)
		f.now = f.now.Add(2 * time.Minute)
	}

	saved := f.notes.Get(note.ID)
	assert.Equal(t, domain.DefaultMaxReminders, saved.RemindCount)
	assert.Nil(t, saved.RemindAt)
	assert.Len(t, f.notifier.Sent(), domain.DefaultMaxReminders)
	require.NoError(t, saved.Validate(domain.DefaultMaxReminders))
}

func TestAdvance_FailingGeneratorFallsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	client := &failingClient{err: errors.New("model unavailable")}
	gen, err := generation.NewGenerator(client, generation.Config{
		MaxRetries:     3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		AttemptTimeout: time.Second,
		MaxConcurrent:  1,
	}, nil)
	require.NoError(t, err)

	scheduler, err := reminder.NewScheduler(f.publisher, gen, nil,
		reminder.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	service, err := reminder.NewService(f.notes, gen, f.notifier, scheduler,
		domain.DefaultReminderPolicy(), nil, reminder.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	note := f.addDueNote(0)
	outcome, err := service.Advance(context.Background(), note.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeAdvanced, outcome)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Do you remember the key point of note: "+note.Title+"?", sent[0].Notification.Question)
	assert.Contains(t, sent[0].Notification.Question, note.Title)
}

type failingClient struct {
	err error
}

func (c *failingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return "", c.err
}

func TestHandleJob_UsesCarriedQuestion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	note := f.addDueNote(1)

	job, err := domain.NewReminderJob(note, "Carried question?")
	require.NoError(t, err)

	outcome, err := f.service.HandleJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeAdvanced, outcome)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Carried question?", sent[0].Notification.Question)
	assert.Equal(t, 2, sent[0].Notification.RemindCount)
	assert.Equal(t, 1, f.generator.Calls(), "only the next job needs a question")
}

func TestHandleJob_StaleJobDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	note := f.addDueNote(2)

	job, err := domain.NewReminderJob(note, "Old question?")
	require.NoError(t, err)
	job.AttemptCount = 1

	outcome, err := f.service.HandleJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeStale, outcome)
	assert.Empty(t, f.notifier.Sent())
	assert.Equal(t, 2, f.notes.Get(note.ID).RemindCount)
}

func TestHandleJob_NilJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	_, err := f.service.HandleJob(context.Background(), nil)
	assert.ErrorIs(t, err, reminder.ErrNilDependency)
}

func TestArm(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	note := f.addNote(domain.DefaultMaxReminders, nil, true)
	at := f.now.Add(10 * time.Minute)

	require.NoError(t, f.service.Arm(context.Background(), note.ID, at))

	saved := f.notes.Get(note.ID)
	assert.Equal(t, 0, saved.RemindCount)
	require.NotNil(t, saved.RemindAt)
	assert.Equal(t, at, *saved.RemindAt)

	published := f.publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, 0, published[0].Job.AttemptCount)
	assert.Equal(t, at, published[0].Job.ScheduledTime)
	assert.Equal(t, 10*time.Minute, published[0].Delay)
	assert.Equal(t, "What is the main idea?", published[0].Job.Question)
}

func TestArm_PublishFailureLeavesNoteUnarmed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.publisher.Err = errors.New("broker down")
	note := f.addNote(0, nil, true)

	err := f.service.Arm(context.Background(), note.ID, f.now.Add(time.Minute))
	assert.ErrorIs(t, err, reminder.ErrReminderScheduleFailed)
	assert.Nil(t, f.notes.Get(note.ID).RemindAt)
}

func TestArm_UnknownNote(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	err := f.service.Arm(context.Background(), uuid.New(), f.now)
	assert.ErrorIs(t, err, store.ErrNoteNotFound)
	assert.Empty(t, f.publisher.Published())
}

func TestAdvance_RecordsMetrics(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	f := newFixture(t, m)

	due := f.addDueNote(0)
	disabled := f.addNote(0, timePtr(f.now.Add(-time.Second)), false)

	_, err := f.service.Advance(context.Background(), due.ID)
	require.NoError(t, err)
	_, err = f.service.Advance(context.Background(), disabled.ID)
	require.NoError(t, err)
	_, err = f.service.Advance(context.Background(), uuid.New())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.AdvanceTotal.WithLabelValues(reminder.TriggerPoll, metrics.OutcomeAdvanced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.AdvanceTotal.WithLabelValues(reminder.TriggerPoll, metrics.OutcomeDisabled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.AdvanceTotal.WithLabelValues(reminder.TriggerPoll, metrics.OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsScheduled.WithLabelValues("success")))
}

func TestNewService_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	policy := domain.DefaultReminderPolicy()

	tests := []struct {
		name  string
		build func() error
		want  error
	}{
		{
			name: "nil store",
			build: func() error {
				_, err := reminder.NewService(nil, f.generator, f.notifier, f.scheduler, policy, nil)
				return err
			},
			want: reminder.ErrNilDependency,
		},
		{
			name: "nil generator",
			build: func() error {
				_, err := reminder.NewService(f.notes, nil, f.notifier, f.scheduler, policy, nil)
				return err
			},
			want: reminder.ErrNilDependency,
		},
		{
			name: "nil notifier",
			build: func() error {
				_, err := reminder.NewService(f.notes, f.generator, nil, f.scheduler, policy, nil)
				return err
			},
			want: reminder.ErrNilDependency,
		},
		{
			name: "nil scheduler",
			build: func() error {
				_, err := reminder.NewService(f.notes, f.generator, f.notifier, nil, policy, nil)
				return err
			},
			want: reminder.ErrNilDependency,
		},
		{
			name: "short backoff table",
			build: func() error {
				bad := domain.ReminderPolicy{MaxReminders: 3, Backoff: []time.Duration{time.Second}}
				_, err := reminder.NewService(f.notes, f.generator, f.notifier, f.scheduler, bad, nil)
				return err
			},
			want: domain.ErrInvalidPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.build(), tt.want)
		})
	}
}

var _ reminder.Advancer = (*reminder.Service)(nil)
var _ reminder.JobHandler = (*reminder.Service)(nil)
var _ reminder.JobPublisher = (*mocks.MockJobPublisher)(nil)
