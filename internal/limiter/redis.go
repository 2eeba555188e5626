package limiter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares its counters between every instance of the service
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		config: cfg.withDefaults(),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	k := l.config.Prefix + ":" + key

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w, %v", ErrUnavailable, err)
	}

	// First hit opens the window
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w, %v", ErrUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrLimited
	}

	return nil
}
