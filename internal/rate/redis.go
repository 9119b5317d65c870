package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the same window/threshold/lockout semantics as
// MemoryLimiter against Redis counters, so lockouts hold across
// horizontally scaled instances.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// NewRedisLimiter creates a Redis-backed Limiter under the given key prefix.
func NewRedisLimiter(redisClient redis.UniversalClient, prefix string, cfg Config) *RedisLimiter {
	return &RedisLimiter{redis: redisClient, prefix: prefix, config: cfg}
}

func (l *RedisLimiter) countKey(key string) string {
	return l.prefix + ":rl:cnt:" + key
}

func (l *RedisLimiter) lockKey(key string) string {
	return l.prefix + ":rl:lock:" + key
}

// Check returns a LockedError while the lockout key is live.
func (l *RedisLimiter) Check(ctx context.Context, callerIP, username string) error {
	key := pairKey(callerIP, username)

	ttl, err := l.redis.PTTL(ctx, l.lockKey(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl > 0 {
		return &LockedError{Until: time.Now().Add(ttl)}
	}
	return nil
}

// RecordFailure bumps the windowed counter; the first hit in a window
// sets the window TTL, and crossing the threshold plants the lockout key.
func (l *RedisLimiter) RecordFailure(ctx context.Context, callerIP, username string) error {
	key := pairKey(callerIP, username)

	count, err := l.redis.Incr(ctx, l.countKey(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.countKey(key), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count >= int64(l.config.Threshold) {
		_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, l.lockKey(key), "1", l.config.Lockout)
			pipe.Del(ctx, l.countKey(key))
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Reset clears counter and lockout for the pair.
func (l *RedisLimiter) Reset(ctx context.Context, callerIP, username string) error {
	key := pairKey(callerIP, username)

	if err := l.redis.Del(ctx, l.countKey(key), l.lockKey(key)).Err(); err != nil {
		if !errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}
