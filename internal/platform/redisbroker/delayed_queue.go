package redisbroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/redact"
	"github.com/redis/go-redis/v9"
)

// ErrNilJob is returned when Publish is called without a job.
var ErrNilJob = errors.New("reminder job cannot be nil")

// claimScript atomically pops up to ARGV[2] members scored at or below ARGV[1].
// Concurrent consumers never receive the same member.
var claimScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #items > 0 then
	redis.call('ZREM', KEYS[1], unpack(items))
end
return items
`)

// DelayedQueue stores reminder jobs in a sorted set scored by their delivery
// time in Unix milliseconds. Jobs become claimable once that time has passed.
type DelayedQueue struct {
	client  redis.Cmdable
	key     string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewDelayedQueue creates a queue on the given sorted-set key.
// timeout bounds each Redis round trip; zero disables the bound.
// If logger is nil, a default logger will be used.
func NewDelayedQueue(client redis.Cmdable, key string, timeout time.Duration, logger *slog.Logger) *DelayedQueue {
	if client == nil {
		// ALLOW-PANIC: constructor precondition
		panic("redis client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DelayedQueue{
		client:  client,
		key:     key,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "delayed_queue")),
		now:     time.Now,
	}
}

// Publish enqueues job for delivery after delay. Negative delays deliver immediately.
func (q *DelayedQueue) Publish(ctx context.Context, job *domain.ReminderJob, delay time.Duration) error {
	if job == nil {
		return ErrNilJob
	}
	if delay < 0 {
		delay = 0
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder job: %w", err)
	}

	deliverAt := q.now().Add(delay)

	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	if err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(deliverAt.UnixMilli()),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue reminder job: %w", err)
	}

	logger.FromContextOrDefault(ctx, q.logger).DebugContext(ctx, "reminder job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("note_id", job.NoteID.String()),
		slog.Duration("delay", delay))
	return nil
}

// Claim removes and returns up to limit jobs whose delivery time is at or
// before now. Payloads that cannot be decoded are dropped and logged.
func (q *DelayedQueue) Claim(ctx context.Context, now time.Time, limit int) ([]*domain.ReminderJob, error) {
	if limit < 1 {
		return nil, nil
	}

	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	members, err := claimScript.Run(ctx, q.client,
		[]string{q.key},
		strconv.FormatInt(now.UnixMilli(), 10),
		limit,
	).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim reminder jobs: %w", err)
	}

	log := logger.FromContextOrDefault(ctx, q.logger)
	jobs := make([]*domain.ReminderJob, 0, len(members))
	for _, m := range members {
		var job domain.ReminderJob
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			log.ErrorContext(ctx, "dropping malformed reminder job",
				redact.ErrorAttr(err),
				slog.Int("payload_length", len(m)))
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// Len returns the number of jobs waiting in the queue, due or not.
func (q *DelayedQueue) Len(ctx context.Context) (int64, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	return q.client.ZCard(ctx, q.key).Result()
}

func (q *DelayedQueue) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, q.timeout)
}
