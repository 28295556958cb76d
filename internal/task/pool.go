package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/scry-notes/internal/redact"
)

// PoolConfig sizes a Pool.
type PoolConfig struct {
	// Workers is the number of goroutines draining the source; minimum 1
	Workers int
	// TaskTimeout bounds one Execute call; zero means no bound
	TaskTimeout time.Duration
}

// ErrorHandler observes a failed or panicked task.
type ErrorHandler func(t Task, err error)

// PoolOption customizes a Pool.
type PoolOption func(*Pool)

// WithErrorHandler calls h for every task that returns an error or panics.
func WithErrorHandler(h ErrorHandler) PoolOption {
	return func(p *Pool) {
		p.onError = h
	}
}

// Pool runs a fixed number of workers over a Source. Stop cancels the
// context passed to in-flight tasks and waits for every worker to return.
type Pool struct {
	source  Source
	config  PoolConfig
	logger  *slog.Logger
	onError ErrorHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a Pool reading from source.
// If logger is nil, a default logger will be used.
func NewPool(source Source, cfg PoolConfig, logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "worker_pool"))

	if cfg.Workers < 1 {
		logger.Warn("invalid worker count, using 1", slog.Int("configured", cfg.Workers))
		cfg.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		source: source,
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.config.Workers }

// Start launches the workers. Later calls have no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting worker pool", slog.Int("workers", p.config.Workers))
		for i := 0; i < p.config.Workers; i++ {
			p.wg.Add(1)
			go p.work(i)
		}
	})
}

// Stop cancels in-flight tasks and waits for the workers. It is idempotent.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.logger.Info("worker pool stopped")
	})
}

// Wait blocks until every worker has returned, either because the source
// was closed and drained or because Stop was called.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(id int) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker_id", id))
	tasks := p.source.Tasks()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-tasks:
			if !ok {
				log.Debug("source closed, worker exiting")
				return
			}
			p.run(log, t)
		}
	}
}

func (p *Pool) run(log *slog.Logger, t Task) {
	start := time.Now()
	err := p.execute(t)
	elapsed := time.Since(start)

	if err == nil {
		log.Debug("task completed",
			slog.String("task_id", t.ID().String()),
			slog.Duration("duration", elapsed))
		return
	}

	log.Error("task failed",
		slog.String("task_id", t.ID().String()),
		slog.String("task_type", t.Type()),
		slog.Duration("duration", elapsed),
		slog.String("payload", redact.String(string(t.Payload()))),
		redact.ErrorAttr(err))
	if p.onError != nil {
		p.onError(t, err)
	}
}

// execute runs t under the task timeout and turns a panic into an error.
func (p *Pool) execute(t Task) (err error) {
	ctx := p.ctx
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.ID(), r)
		}
	}()

	return t.Execute(ctx)
}
