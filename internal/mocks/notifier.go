package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/notify"
)

// SentNotification is one recorded Notify call.
type SentNotification struct {
	UserID       uuid.UUID
	Notification domain.ReminderNotification
}

// MockNotifier implements notify.Notifier for testing
type MockNotifier struct {
	// NotifyFn allows test cases to mock the Notify behavior
	NotifyFn func(ctx context.Context, userID uuid.UUID, n domain.ReminderNotification) error

	// Err is returned when NotifyFn is nil
	Err error

	mu   sync.Mutex
	sent []SentNotification
}

// Ensure MockNotifier implements notify.Notifier
var _ notify.Notifier = (*MockNotifier)(nil)

// Notify implements notify.Notifier. Calls are recorded whether or not they fail.
func (m *MockNotifier) Notify(ctx context.Context, userID uuid.UUID, n domain.ReminderNotification) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentNotification{UserID: userID, Notification: n})
	m.mu.Unlock()

	if m.NotifyFn != nil {
		return m.NotifyFn(ctx, userID, n)
	}
	return m.Err
}

// Sent returns the recorded notifications.
func (m *MockNotifier) Sent() []SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentNotification(nil), m.sent...)
}
