package middleware

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DistributedLimiter rate limits with a fixed window counter in Redis so
// limits hold across collector replicas.
type DistributedLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedLimiter creates a Redis-backed limiter. A nil config uses
// the ingestion defaults; an empty prefix defaults to "beacon:ratelimit".
func NewDistributedLimiter(client *redis.Client, config *RateLimitConfig, prefix string) *DistributedLimiter {
	if config == nil {
		config = IngestRateLimitConfig()
	}
	if prefix == "" {
		prefix = "beacon:ratelimit"
	}
	return &DistributedLimiter{redis: client, config: config, prefix: prefix}
}

// Config returns the limiter's configuration
func (rl *DistributedLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow reports whether a request for key may proceed. A Redis failure
// allows the request and returns the error, so a cache outage never blocks
// ingestion.
func (rl *DistributedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limit check failed: %w", err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the requests left in the current window for key
func (rl *DistributedLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate limit lookup failed: %w", err)
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
