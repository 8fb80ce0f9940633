package domain

import "time"

// RateLimitEntry is the fixed-window counter state for one source key.
type RateLimitEntry struct {
	SourceKey     string
	Count         int
	WindowResetAt time.Time
}
