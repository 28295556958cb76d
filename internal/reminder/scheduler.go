package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/generation"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/redact"
)

// JobPublisher hands a reminder job to a delayed-delivery broker.
// The job must not be delivered before delay has elapsed.
type JobPublisher interface {
	Publish(ctx context.Context, job *domain.ReminderJob, delay time.Duration) error
}

// Scheduler turns an armed note into a delayed reminder job.
type Scheduler struct {
	publisher JobPublisher
	generator generation.QuestionGenerator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewScheduler creates a Scheduler.
// If logger is nil, a default logger will be used.
func NewScheduler(
	publisher JobPublisher,
	generator generation.QuestionGenerator,
	logger *slog.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if publisher == nil {
		return nil, fmt.Errorf("%w: publisher cannot be nil", ErrNilDependency)
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: question generator cannot be nil", ErrNilDependency)
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	return &Scheduler{
		publisher: publisher,
		generator: generator,
		logger:    logger.With(slog.String("component", "reminder_scheduler")),
		metrics:   o.metrics,
		now:       o.now,
	}, nil
}

// ScheduleReminder generates a question for the note's next reminder and
// publishes the job. The note must be armed.
func (s *Scheduler) ScheduleReminder(ctx context.Context, note *domain.Note) error {
	job, err := s.PrepareJob(ctx, note)
	if err != nil {
		return err
	}
	return s.Publish(ctx, job)
}

// ScheduleReminderWithQuestion publishes a job carrying an already generated question.
func (s *Scheduler) ScheduleReminderWithQuestion(ctx context.Context, note *domain.Note, question string) error {
	job, err := buildJob(note, question)
	if err != nil {
		return err
	}
	return s.Publish(ctx, job)
}

// PrepareJob builds the job for the note's next reminder, generating its
// question. It does not publish, so callers can generate outside a
// transaction and publish inside it.
func (s *Scheduler) PrepareJob(ctx context.Context, note *domain.Note) (*domain.ReminderJob, error) {
	if note == nil || !note.IsArmed() {
		return nil, fmt.Errorf("%w: note is not armed", ErrReminderScheduleFailed)
	}
	question := s.generator.GenerateQuestion(ctx, note.Title, note.Content)
	return buildJob(note, question)
}

// Publish sends the job with a delay of max(0, scheduledTime - now).
// Failures wrap ErrReminderScheduleFailed.
func (s *Scheduler) Publish(ctx context.Context, job *domain.ReminderJob) error {
	if job == nil {
		return fmt.Errorf("%w: job cannot be nil", ErrReminderScheduleFailed)
	}
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("note_id", job.NoteID.String()),
		slog.String("job_id", job.ID.String()),
		slog.Int("attempt_count", job.AttemptCount),
	)

	delay := job.ScheduledTime.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	err := s.publisher.Publish(ctx, job, delay)
	s.metrics.ObserveScheduled(err)
	if err != nil {
		log.ErrorContext(ctx, "failed to publish reminder job",
			redact.ErrorAttr(err))
		return fmt.Errorf("%w: %w", ErrReminderScheduleFailed, err)
	}

	log.DebugContext(ctx, "reminder job published",
		slog.Int64("delay_ms", delay.Milliseconds()),
		slog.Time("scheduled_time", job.ScheduledTime))
	return nil
}

func buildJob(note *domain.Note, question string) (*domain.ReminderJob, error) {
	if note == nil {
		return nil, fmt.Errorf("%w: note cannot be nil", ErrReminderScheduleFailed)
	}
	job, err := domain.NewReminderJob(note, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReminderScheduleFailed, err)
	}
	return job, nil
}
