package ratelimit

import (
	"context"
	"sync"
	"time"

	"coin-chat/internal/domain"
)

const defaultSweepThreshold = 10000

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps counters in process memory. Counters are per instance;
// deployments with more than one instance need a shared Store.
type MemoryStore struct {
	mu             sync.Mutex
	entries        map[string]domain.RateLimitEntry
	sweepThreshold int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:        make(map[string]domain.RateLimitEntry),
		sweepThreshold: defaultSweepThreshold,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (domain.RateLimitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.WindowResetAt) {
		if !ok && len(s.entries) >= s.sweepThreshold {
			s.sweepLocked(now)
		}
		entry = domain.RateLimitEntry{SourceKey: key, Count: 1, WindowResetAt: now.Add(window)}
	} else {
		entry.Count++
	}
	s.entries[key] = entry
	return entry, nil
}

// Len returns the number of tracked source keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweepLocked drops entries whose window has expired.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for k, e := range s.entries {
		if now.After(e.WindowResetAt) {
			delete(s.entries, k)
		}
	}
}
