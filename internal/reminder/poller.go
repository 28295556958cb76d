package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/redact"
	"github.com/phrazzld/scry-notes/internal/store"
	"github.com/sourcegraph/conc/pool"
)

// Advancer advances a single note. Service implements it.
type Advancer interface {
	Advance(ctx context.Context, noteID uuid.UUID) (Outcome, error)
}

// PollerConfig controls the due-note poll loop.
type PollerConfig struct {
	// Interval between ticks
	Interval time.Duration
	// BatchSize caps the notes loaded per tick
	BatchSize int
	// MaxReminders is the reminder budget used by the due filter
	MaxReminders int
	// Workers bounds concurrent advances within a tick
	Workers int
	// AdvanceTimeout bounds one note's advance
	AdvanceTimeout time.Duration
}

// PollerConfigFrom maps the application reminder settings to a PollerConfig.
func PollerConfigFrom(cfg config.ReminderConfig) PollerConfig {
	return PollerConfig{
		Interval:       cfg.PollInterval,
		BatchSize:      cfg.BatchSize,
		MaxReminders:   cfg.MaxReminders,
		Workers:        cfg.WorkerCount,
		AdvanceTimeout: cfg.AdvanceTimeout,
	}
}

// TickResult summarizes one poll tick.
type TickResult struct {
	Due      int
	Advanced int
	Skipped  int
	Failed   int
	// Err is set when the due query itself failed
	Err error
}

// Poller periodically finds due notes and advances each of them.
// It owns its ticker; nothing runs until Start is called.
type Poller struct {
	notes    store.NoteStore
	advancer Advancer
	config   PollerConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a Poller.
// If logger is nil, a default logger will be used.
func NewPoller(
	notes store.NoteStore,
	advancer Advancer,
	cfg PollerConfig,
	logger *slog.Logger,
	opts ...Option,
) (*Poller, error) {
	if notes == nil {
		return nil, fmt.Errorf("%w: note store cannot be nil", ErrNilDependency)
	}
	if advancer == nil {
		return nil, fmt.Errorf("%w: advancer cannot be nil", ErrNilDependency)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.Interval)
	}
	if cfg.MaxReminders < 1 {
		return nil, fmt.Errorf("max reminders must be at least 1, got %d", cfg.MaxReminders)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	return &Poller{
		notes:    notes,
		advancer: advancer,
		config:   cfg,
		logger:   logger.With(slog.String("component", "reminder_poller")),
		metrics:  o.metrics,
		now:      o.now,
	}, nil
}

// Start launches the poll loop. The loop stops when Stop is called or ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("poller %w", ErrAlreadyStarted)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("starting reminder poller",
		slog.Duration("interval", p.config.Interval),
		slog.Int("workers", p.config.Workers))
	go p.run(loopCtx, p.done)
	return nil
}

// Stop ends the poll loop and waits for the current tick to finish, or for
// ctx to be done. Stopping a poller that is not running is a no-op.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		p.logger.Info("reminder poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

type advanceResult struct {
	noteID  uuid.UUID
	outcome Outcome
	err     error
}

// Tick runs one poll: load due notes and advance each on the bounded pool.
// It returns after every advance has finished. A failing note never affects
// the others.
func (p *Poller) Tick(ctx context.Context) TickResult {
	start := time.Now()

	due, err := p.notes.FindDueReminders(ctx, p.now().UTC(), p.config.MaxReminders, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to query due reminders", redact.ErrorAttr(err))
		p.metrics.ObservePoll(time.Since(start), 0)
		return TickResult{Err: err}
	}

	result := TickResult{Due: len(due)}
	if len(due) == 0 {
		p.metrics.ObservePoll(time.Since(start), 0)
		return result
	}

	workers := pool.NewWithResults[advanceResult]().WithMaxGoroutines(p.config.Workers)
	for _, note := range due {
		noteID := note.ID
		workers.Go(func() advanceResult {
			return p.advanceOne(ctx, noteID)
		})
	}

	for _, r := range workers.Wait() {
		switch {
		case r.err != nil:
			result.Failed++
			p.logger.ErrorContext(ctx, "reminder advance failed",
				slog.String("note_id", r.noteID.String()),
				redact.ErrorAttr(r.err))
		case r.outcome.Delivered():
			result.Advanced++
		default:
			result.Skipped++
		}
	}

	p.metrics.ObservePoll(time.Since(start), len(due))
	p.logger.InfoContext(ctx, "poll tick finished",
		slog.Int("due", result.Due),
		slog.Int("advanced", result.Advanced),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return result
}

// advanceOne runs one advance under the per-note timeout, turning a panic
// into an error so it stays isolated to its note.
func (p *Poller) advanceOne(ctx context.Context, noteID uuid.UUID) (res advanceResult) {
	res.noteID = noteID

	if p.config.AdvanceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.AdvanceTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("advance panicked: %v", r)
		}
	}()

	res.outcome, res.err = p.advancer.Advance(ctx, noteID)
	return res
}
