package redisbroker

import (
	"context"
	"fmt"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient parses the configured URL, applies the operation timeout to reads
// and writes, and verifies the connection with a PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.OperationTimeout > 0 {
		opts.DialTimeout = cfg.OperationTimeout
		opts.ReadTimeout = cfg.OperationTimeout
		opts.WriteTimeout = cfg.OperationTimeout
	}

	client := redis.NewClient(opts)

	pingCtx := ctx
	if cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.OperationTimeout)
		defer cancel()
	}

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
