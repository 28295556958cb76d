package reminder

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/task"
)

// jobTask runs one claimed reminder job on the worker pool.
type jobTask struct {
	job     *domain.ReminderJob
	handler JobHandler
	metrics *metrics.Metrics

	mu     sync.Mutex
	status task.Status
}

var _ task.Task = (*jobTask)(nil)

func newJobTask(job *domain.ReminderJob, handler JobHandler, m *metrics.Metrics) *jobTask {
	return &jobTask{
		job:     job,
		handler: handler,
		metrics: m,
		status:  task.StatusPending,
	}
}

func (t *jobTask) ID() uuid.UUID {
	return t.job.ID
}

func (t *jobTask) Type() string {
	return task.TypeReminderJob
}

func (t *jobTask) Payload() []byte {
	payload, _ := json.Marshal(t.job)
	return payload
}

func (t *jobTask) Status() task.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *jobTask) setStatus(s task.Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// fail marks the task failed and counts it. The worker pool calls it for
// errors and panics alike.
func (t *jobTask) fail() {
	t.setStatus(task.StatusFailed)
	t.metrics.ObserveConsumed(metrics.OutcomeFailed)
}

func (t *jobTask) Execute(ctx context.Context) error {
	t.setStatus(task.StatusProcessing)

	outcome, err := t.handler.HandleJob(ctx, t.job)
	if err != nil {
		t.setStatus(task.StatusFailed)
		return err
	}

	label := string(outcome)
	if outcome.Delivered() {
		label = metrics.OutcomeHandled
	}
	t.metrics.ObserveConsumed(label)
	t.setStatus(task.StatusCompleted)
	return nil
}
