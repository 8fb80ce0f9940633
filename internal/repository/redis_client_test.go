package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s, err := NewRedisStore(rdb)
	require.NoError(t, err)
	return s, mr
}

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil)
	require.Error(t, err)
}

func TestRedisStore_CountsWithinWindow(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := s.Increment(ctx, "203.0.113.9", now, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)
	require.Equal(t, now.Add(time.Minute), first.WindowResetAt)
	require.Equal(t, time.Minute, mr.TTL(redisKeyPrefix+"203.0.113.9"))

	var last int
	for i := 0; i < 20; i++ {
		e, err := s.Increment(ctx, "203.0.113.9", now, time.Minute)
		require.NoError(t, err)
		last = e.Count
	}
	require.Equal(t, 21, last)
}

func TestRedisStore_NewWindowAfterExpiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, err := s.Increment(ctx, "k", now, time.Minute)
		require.NoError(t, err)
	}
	mr.FastForward(61 * time.Second)

	e, err := s.Increment(ctx, "k", now.Add(61*time.Second), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, e.Count)
}

func TestRedisStore_RepairsMissingExpiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(redisKeyPrefix+"k", "3"))

	e, err := s.Increment(ctx, "k", time.Now(), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 4, e.Count)
	require.Equal(t, time.Minute, mr.TTL(redisKeyPrefix+"k"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, err := s.Increment(context.Background(), "k", time.Now(), time.Minute)
	require.ErrorContains(t, err, "redis incr")
}
