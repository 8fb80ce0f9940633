package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"coin-chat/internal/domain"
	"coin-chat/internal/ratelimit"
)

const redisKeyPrefix = "coinchat:ratelimit:"

// Compile-time check to ensure RedisStore implements ratelimit.Store
var _ ratelimit.Store = (*RedisStore)(nil)

// RedisStore keeps fixed-window counters as expiring Redis keys. The key
// expiring is what opens the next window.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (domain.RateLimitEntry, error) {
	k := redisKeyPrefix + key

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return domain.RateLimitEntry{}, fmt.Errorf("repository: redis incr: %w", err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, k, window).Err(); err != nil {
			return domain.RateLimitEntry{}, fmt.Errorf("repository: redis pexpire: %w", err)
		}
		return domain.RateLimitEntry{SourceKey: key, Count: 1, WindowResetAt: now.Add(window)}, nil
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return domain.RateLimitEntry{}, fmt.Errorf("repository: redis pttl: %w", err)
	}
	if ttl < 0 {
		// A previous first hit failed between INCR and PEXPIRE.
		if err := r.client.PExpire(ctx, k, window).Err(); err != nil {
			return domain.RateLimitEntry{}, fmt.Errorf("repository: redis pexpire: %w", err)
		}
		ttl = window
	}
	return domain.RateLimitEntry{SourceKey: key, Count: int(count), WindowResetAt: now.Add(ttl)}, nil
}
