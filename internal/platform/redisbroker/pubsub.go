package redisbroker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// PubSub publishes and subscribes to Redis channels.
type PubSub struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPubSub creates a PubSub on client.
// If logger is nil, a default logger will be used.
func NewPubSub(client *redis.Client, logger *slog.Logger) *PubSub {
	if client == nil {
		// ALLOW-PANIC: constructor precondition
		panic("redis client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSub{
		client: client,
		logger: logger.With(slog.String("component", "pubsub")),
	}
}

// Publish sends payload to topic. Delivery is fire-and-forget: a message
// published while nobody is subscribed is lost.
func (p *PubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscription is a live channel subscription.
type Subscription struct {
	pubsub   *redis.PubSub
	messages chan []byte
}

// Messages returns the payloads received on the subscribed topics. The channel
// is closed when the subscription is closed.
func (s *Subscription) Messages() <-chan []byte {
	return s.messages
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe listens on topics until ctx is cancelled or the subscription is closed.
// It returns once the server has confirmed the subscription.
func (p *PubSub) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	ps := p.client.Subscribe(ctx, topics...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &Subscription{
		pubsub:   ps,
		messages: make(chan []byte, 100),
	}

	go func() {
		defer close(sub.messages)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = ps.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case sub.messages <- []byte(msg.Payload):
				case <-ctx.Done():
					_ = ps.Close()
					return
				}
			}
		}
	}()

	return sub, nil
}
