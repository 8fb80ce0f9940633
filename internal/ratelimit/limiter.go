// Package ratelimit caps requests per source key with a fixed window that
// restarts on the first request after expiry.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coin-chat/internal/domain"
)

const (
	DefaultLimit  = 20
	DefaultWindow = time.Minute
)

// Store keeps one counter per source key. Increment opens a new window with
// count 1 when none is active at now, otherwise increments the count, and
// returns the resulting entry.
type Store interface {
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (domain.RateLimitEntry, error)
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func NewLimiter(store Store, limit int, window time.Duration, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store must not be nil")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{store: store, limit: limit, window: window, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow counts one request for key. The request that pushes the count past
// the limit, and every later one in the same window, is denied.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Decision{}, errors.New("ratelimit: key must not be empty")
	}
	now := l.now()
	entry, err := l.store.Increment(ctx, key, now, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: increment %q: %w", key, err)
	}

	d := Decision{
		Allowed:   entry.Count <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-entry.Count, 0),
		ResetAt:   entry.WindowResetAt,
	}
	if !d.Allowed {
		d.RetryAfter = max(entry.WindowResetAt.Sub(now), 0)
	}
	return d, nil
}
