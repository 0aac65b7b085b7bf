package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter bounds login attempts per client key.
type LoginLimiter interface {
	// Allow records an attempt and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLoginLimiter is a fixed-window counter kept in Redis, shared by all replicas.
type RedisLoginLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

var _ LoginLimiter = (*RedisLoginLimiter)(nil)

// NewRedisLoginLimiter returns nil when client is nil or limit is not positive,
// which callers treat as "no limit".
func NewRedisLoginLimiter(client *redis.Client, limit int, window time.Duration) *RedisLoginLimiter {
	if client == nil || limit <= 0 {
		return nil
	}
	return &RedisLoginLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "flightops:login:" + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count login attempt: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set login window: %w", err)
		}
	}

	return count <= int64(l.limit), nil
}
