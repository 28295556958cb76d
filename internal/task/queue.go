package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// Queue is a bounded, non-blocking Source. Producers check Free before
// pulling work from an external broker so nothing they claim is rejected.
type Queue struct {
	mu     sync.RWMutex
	tasks  chan Task
	closed bool
	logger *slog.Logger
}

var _ Source = (*Queue)(nil)

// NewQueue creates a Queue holding at most capacity tasks (minimum 1).
// If logger is nil, a default logger will be used.
func NewQueue(capacity int, logger *slog.Logger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		tasks:  make(chan Task, capacity),
		logger: logger.With(slog.String("component", "task_queue")),
	}
}

// Enqueue buffers t without blocking.
func (q *Queue) Enqueue(t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- t:
		q.logger.Debug("task enqueued",
			slog.String("task_id", t.ID().String()),
			slog.String("task_type", t.Type()),
			slog.Int("queued", len(q.tasks)))
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(q.tasks))
	}
}

// Close stops further submission. Buffered tasks can still be read.
// Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
	q.logger.Debug("task queue closed", slog.Int("abandoned", len(q.tasks)))
}

// Len returns the number of buffered tasks.
func (q *Queue) Len() int { return len(q.tasks) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.tasks) }

// Free returns how many more tasks fit right now.
func (q *Queue) Free() int { return cap(q.tasks) - len(q.tasks) }

// Tasks implements Source.
func (q *Queue) Tasks() <-chan Task { return q.tasks }
