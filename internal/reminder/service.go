package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/generation"
	"github.com/phrazzld/scry-notes/internal/notify"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/redact"
	"github.com/phrazzld/scry-notes/internal/store"
)

// generationShare is the part of the remaining advance deadline that one
// question generation may use: 1/generationShare.
const generationShare = 3

// Triggers label where an advance came from.
const (
	TriggerPoll   = "poll"
	TriggerBroker = "broker"
)

// Service advances notes through the reminder cycle.
// It is safe for concurrent use; concurrent advances of the same note are
// resolved by the store so that at most one of them is persisted.
type Service struct {
	notes     store.NoteStore
	generator generation.QuestionGenerator
	notifier  notify.Notifier
	scheduler *Scheduler
	policy    domain.ReminderPolicy
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService creates a reminder Service.
// If logger is nil, a default logger will be used.
func NewService(
	notes store.NoteStore,
	generator generation.QuestionGenerator,
	notifier notify.Notifier,
	scheduler *Scheduler,
	policy domain.ReminderPolicy,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	switch {
	case notes == nil:
		return nil, fmt.Errorf("%w: note store cannot be nil", ErrNilDependency)
	case generator == nil:
		return nil, fmt.Errorf("%w: question generator cannot be nil", ErrNilDependency)
	case notifier == nil:
		return nil, fmt.Errorf("%w: notifier cannot be nil", ErrNilDependency)
	case scheduler == nil:
		return nil, fmt.Errorf("%w: scheduler cannot be nil", ErrNilDependency)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	return &Service{
		notes:     notes,
		generator: generator,
		notifier:  notifier,
		scheduler: scheduler,
		policy:    policy,
		logger:    logger.With(slog.String("component", "reminder_service")),
		metrics:   o.metrics,
		now:       o.now,
	}, nil
}

// Policy returns the reminder policy the service advances notes with.
func (s *Service) Policy() domain.ReminderPolicy {
	return s.policy
}

// Advance delivers the note's due reminder and moves it to its next state.
// A note that is disabled or not due is left untouched and no error is returned.
// On a notification or persistence failure the note keeps its pre-advance
// state so a later trigger retries it.
func (s *Service) Advance(ctx context.Context, noteID uuid.UUID) (Outcome, error) {
	return s.advance(ctx, noteID, nil, TriggerPoll)
}

// HandleJob advances the note a broker job was scheduled for, reusing the
// question the job carries. Jobs that no longer match the note are dropped.
func (s *Service) HandleJob(ctx context.Context, job *domain.ReminderJob) (Outcome, error) {
	if job == nil {
		return "", fmt.Errorf("%w: job cannot be nil", ErrNilDependency)
	}
	return s.advance(ctx, job.NoteID, job, TriggerBroker)
}

func (s *Service) advance(
	ctx context.Context,
	noteID uuid.UUID,
	job *domain.ReminderJob,
	trigger string,
) (outcome Outcome, err error) {
	start := time.Now()
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("note_id", noteID.String()),
		slog.String("trigger", trigger),
	)
	defer func() {
		label := string(outcome)
		if err != nil {
			label = metrics.OutcomeFailed
		}
		s.metrics.ObserveAdvance(trigger, label, time.Since(start))
	}()

	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		log.ErrorContext(ctx, "failed to load note", redact.ErrorAttr(err))
		return "", newReminderError("load", noteID, err)
	}
	log = log.With(
		slog.String("user_id", note.UserID.String()),
		slog.Int("remind_count", note.RemindCount),
	)
	ctx = logger.WithLogger(ctx, log)

	if !note.AlarmEnabled {
		log.InfoContext(ctx, "alarm disabled for user, skipping reminder")
		return OutcomeDisabled, nil
	}

	if job != nil && job.AttemptCount != note.RemindCount {
		log.InfoContext(ctx, "dropping stale reminder job",
			slog.String("job_id", job.ID.String()),
			slog.Int("attempt_count", job.AttemptCount))
		return OutcomeStale, nil
	}

	now := s.now().UTC()
	if !note.IsDue(now, s.policy.MaxReminders) {
		log.DebugContext(ctx, "note not due")
		return OutcomeNotDue, nil
	}

	question := ""
	if job != nil {
		question = job.Question
	}
	if question == "" {
		genCtx, cancel := generationContext(ctx)
		question = s.generator.GenerateQuestion(genCtx, note.Title, note.Content)
		cancel()
	}

	adv := note.NextReminder(now, s.policy)

	notification := domain.ReminderNotification{
		NoteID:      note.ID,
		Title:       note.Title,
		Question:    question,
		RemindCount: adv.RemindCount,
		Timestamp:   now,
	}
	if err := s.notifier.Notify(ctx, note.UserID, notification); err != nil {
		log.ErrorContext(ctx, "failed to notify user, leaving note unchanged",
			redact.ErrorAttr(err))
		return "", newReminderError("notify", noteID, err)
	}

	// The next job's question is generated before the transaction so that
	// the row lock is not held across a model call.
	var next *domain.ReminderJob
	if !adv.Completed() {
		advanced := *note
		advanced.ApplyAdvance(adv)
		genCtx, cancel := generationContext(ctx)
		next, err = s.scheduler.PrepareJob(genCtx, &advanced)
		cancel()
		if err != nil {
			log.ErrorContext(ctx, "failed to prepare next reminder job",
				redact.ErrorAttr(err))
			return "", newReminderError("schedule", noteID, err)
		}
	}

	err = s.notes.InTransaction(ctx, func(ctx context.Context, notes store.NoteStore) error {
		current, err := notes.FindByIDForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		if !sameReminderState(current, note) {
			return store.ErrConcurrentUpdate
		}

		current.ApplyAdvance(adv)
		if err := current.Validate(s.policy.MaxReminders); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
		if err := notes.Save(ctx, current); err != nil {
			return err
		}

		if next != nil {
			return s.scheduler.Publish(ctx, next)
		}
		return nil
	})
	if errors.Is(err, store.ErrConcurrentUpdate) {
		log.InfoContext(ctx, "note advanced by another trigger, dropping duplicate")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to persist reminder advance, leaving note unchanged",
			redact.ErrorAttr(err))
		return "", newReminderError("persist", noteID, err)
	}

	if adv.Completed() {
		log.InfoContext(ctx, "final reminder delivered, cycle complete",
			slog.Int("new_remind_count", adv.RemindCount))
		return OutcomeCompleted, nil
	}

	log.InfoContext(ctx, "reminder delivered",
		slog.Int("new_remind_count", adv.RemindCount),
		slog.Time("next_remind_at", *adv.RemindAt))
	return OutcomeAdvanced, nil
}

// Arm starts a new reminder cycle for the note at the given time and
// schedules its first job in the same transaction. If the job cannot be
// published the note is left unchanged and the error wraps
// ErrReminderScheduleFailed.
func (s *Service) Arm(ctx context.Context, noteID uuid.UUID, at time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("note_id", noteID.String()))

	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return newReminderError("load", noteID, err)
	}

	armed := *note
	armed.Arm(at)
	genCtx, cancel := generationContext(ctx)
	job, err := s.scheduler.PrepareJob(genCtx, &armed)
	cancel()
	if err != nil {
		return newReminderError("schedule", noteID, err)
	}

	err = s.notes.InTransaction(ctx, func(ctx context.Context, notes store.NoteStore) error {
		current, err := notes.FindByIDForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		current.Arm(at)
		if err := notes.Save(ctx, current); err != nil {
			return err
		}
		return s.scheduler.Publish(ctx, job)
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to arm note", redact.ErrorAttr(err))
		return newReminderError("arm", noteID, err)
	}

	log.InfoContext(ctx, "note armed", slog.Time("remind_at", at.UTC()))
	return nil
}

// generationContext bounds one question generation to a share of the time
// left before ctx's deadline. The generator falls back when it runs out, so
// the rest of the deadline stays available to notify and persist.
func generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/generationShare)
}

func sameReminderState(a, b *domain.Note) bool {
	if a.RemindCount != b.RemindCount {
		return false
	}
	if a.RemindAt == nil || b.RemindAt == nil {
		return a.RemindAt == nil && b.RemindAt == nil
	}
	return a.RemindAt.Equal(*b.RemindAt)
}
