package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// PublishedJob is one recorded Publish call.
type PublishedJob struct {
	Job   *domain.ReminderJob
	Delay time.Duration
}

// MockJobPublisher records reminder jobs instead of sending them to a broker.
type MockJobPublisher struct {
	// PublishFn allows test cases to mock the Publish behavior
	PublishFn func(ctx context.Context, job *domain.ReminderJob, delay time.Duration) error

	// Err is returned when PublishFn is nil
	Err error

	mu        sync.Mutex
	published []PublishedJob
}

// Publish records the job and returns Err.
func (m *MockJobPublisher) Publish(ctx context.Context, job *domain.ReminderJob, delay time.Duration) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(ctx, job, delay); err != nil {
			return err
		}
	} else if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedJob{Job: job, Delay: delay})
	return nil
}

// Published returns the successfully published jobs.
func (m *MockJobPublisher) Published() []PublishedJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedJob(nil), m.published...)
}
