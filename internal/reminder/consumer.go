package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/redact"
	"github.com/phrazzld/scry-notes/internal/task"
)

// JobSource claims reminder jobs whose delivery time has passed.
// A claimed job is never returned to another caller.
type JobSource interface {
	Claim(ctx context.Context, now time.Time, limit int) ([]*domain.ReminderJob, error)
}

// JobHandler processes one claimed job. Service implements it.
type JobHandler interface {
	HandleJob(ctx context.Context, job *domain.ReminderJob) (Outcome, error)
}

// ConsumerConfig controls the broker consumer.
type ConsumerConfig struct {
	// Interval between claim attempts
	Interval time.Duration
	// BatchSize caps the jobs claimed at once
	BatchSize int
	// Workers is the number of concurrent job handlers
	Workers int
	// QueueSize bounds claimed jobs waiting for a worker
	QueueSize int
	// JobTimeout bounds one job; zero disables the bound
	JobTimeout time.Duration
}

// ConsumerConfigFrom maps the application settings to a ConsumerConfig.
func ConsumerConfigFrom(redisCfg config.RedisConfig, reminderCfg config.ReminderConfig) ConsumerConfig {
	return ConsumerConfig{
		Interval:   redisCfg.ConsumeInterval,
		BatchSize:  redisCfg.ConsumeBatchSize,
		Workers:    reminderCfg.ConsumerWorkers,
		QueueSize:  reminderCfg.ConsumerQueueSize,
		JobTimeout: reminderCfg.AdvanceTimeout,
	}
}

// Consumer claims due jobs from the delayed queue and hands them to a
// worker pool. Only as many jobs are claimed as the queue has room for, so
// a claimed job is dropped only when the consumer stops; the poller still
// delivers its note.
type Consumer struct {
	source  JobSource
	handler JobHandler
	config  ConsumerConfig
	queue   *task.Queue
	workers *task.Pool
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConsumer creates a Consumer.
// If logger is nil, a default logger will be used.
func NewConsumer(
	source JobSource,
	handler JobHandler,
	cfg ConsumerConfig,
	logger *slog.Logger,
	opts ...Option,
) (*Consumer, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: job source cannot be nil", ErrNilDependency)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: job handler cannot be nil", ErrNilDependency)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("consume interval must be positive, got %s", cfg.Interval)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	queue := task.NewQueue(cfg.QueueSize, logger)
	workers := task.NewPool(queue, task.PoolConfig{
		Workers:     cfg.Workers,
		TaskTimeout: cfg.JobTimeout,
	}, logger, task.WithErrorHandler(onJobFailure))

	return &Consumer{
		source:  source,
		handler: handler,
		config:  cfg,
		queue:   queue,
		workers: workers,
		logger:  logger.With(slog.String("component", "reminder_consumer")),
		metrics: o.metrics,
		now:     o.now,
	}, nil
}

func onJobFailure(t task.Task, _ error) {
	if jt, ok := t.(*jobTask); ok {
		jt.fail()
	}
}

// Start launches the workers and the claim loop. A Consumer can be started once.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("consumer %w", ErrAlreadyStarted)
	}
	c.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.workers.Start()
	c.logger.Info("starting reminder consumer",
		slog.Duration("interval", c.config.Interval),
		slog.Int("batch_size", c.config.BatchSize))
	go c.run(loopCtx, c.done)
	return nil
}

// Stop ends the claim loop, then stops the workers. In-flight jobs are
// cancelled; buffered jobs are dropped.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.queue.Close()
	c.workers.Stop()
	c.logger.Info("reminder consumer stopped")
	return nil
}

func (c *Consumer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.ClaimOnce(ctx); err != nil && ctx.Err() == nil {
				c.logger.ErrorContext(ctx, "failed to claim reminder jobs",
					redact.ErrorAttr(err))
			}
		}
	}
}

// ClaimOnce claims up to the free queue capacity and enqueues the jobs.
// It returns how many jobs were enqueued.
func (c *Consumer) ClaimOnce(ctx context.Context) (int, error) {
	limit := c.queue.Free()
	if limit > c.config.BatchSize {
		limit = c.config.BatchSize
	}
	if limit <= 0 {
		return 0, nil
	}

	jobs, err := c.source.Claim(ctx, c.now(), limit)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, job := range jobs {
		if err := c.queue.Enqueue(newJobTask(job, c.handler, c.metrics)); err != nil {
			c.metrics.IncQueueRejected()
			c.logger.WarnContext(ctx, "dropping claimed reminder job",
				slog.String("job_id", job.ID.String()),
				slog.String("note_id", job.NoteID.String()),
				redact.ErrorAttr(err))
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		c.logger.DebugContext(ctx, "claimed reminder jobs", slog.Int("count", enqueued))
	}
	return enqueued, nil
}
