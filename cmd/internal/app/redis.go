package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient parses cfg.RedisURL and validates connectivity.
// When the rate limiter fails open an unreachable Redis is logged and the
// client is returned anyway; it reconnects on later commands.
func NewRedisClient(ctx context.Context, cfg Config, log Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 2 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = time.Second
	}

	client := redis.NewClient(opts)
	if err := PingRedis(ctx, client, 3*time.Second); err != nil {
		if cfg.RateLimitFailOpen {
			log.Warn("redis.unreachable.fail_open", "addr", opts.Addr, "err", err)
			return client, nil
		}
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// PingRedis checks that Redis answers within timeout.
func PingRedis(parent context.Context, client redis.UniversalClient, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	return client.Ping(ctx).Err()
}
