// Package notify delivers reminder notifications to users over a real-time
// publish/subscribe channel.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/redact"
)

// Notifier pushes a reminder to a user.
// Delivery is best-effort: there is no confirmation and no retry.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, n domain.ReminderNotification) error
}

// Publisher sends a raw payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// PubSubNotifier publishes JSON-encoded notifications on the user's reminder topic.
type PubSubNotifier struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Ensure PubSubNotifier implements Notifier
var _ Notifier = (*PubSubNotifier)(nil)

// NewPubSubNotifier creates a notifier on publisher. m may be nil.
// If logger is nil, a default logger will be used.
func NewPubSubNotifier(publisher Publisher, logger *slog.Logger, m *metrics.Metrics) *PubSubNotifier {
	if publisher == nil {
		// ALLOW-PANIC: constructor precondition
		panic("publisher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSubNotifier{
		publisher: publisher,
		logger:    logger.With(slog.String("component", "notifier")),
		metrics:   m,
		now:       time.Now,
	}
}

// Notify implements Notifier. A zero Timestamp is filled with the current time.
func (p *PubSubNotifier) Notify(ctx context.Context, userID uuid.UUID, n domain.ReminderNotification) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	if n.Timestamp.IsZero() {
		n.Timestamp = p.now().UTC()
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder notification: %w", err)
	}

	topic := domain.ReminderTopic(userID)
	err = p.publisher.Publish(ctx, topic, payload)
	p.metrics.ObserveNotification(err)
	if err != nil {
		log.ErrorContext(ctx, "failed to publish reminder notification",
			slog.String("topic", topic),
			slog.String("note_id", n.NoteID.String()),
			redact.ErrorAttr(err))
		return fmt.Errorf("failed to publish reminder notification: %w", err)
	}

	log.InfoContext(ctx, "reminder notification published",
		slog.String("topic", topic),
		slog.String("note_id", n.NoteID.String()),
		slog.Int("remind_count", n.RemindCount))
	return nil
}
