package ratelimit

import (
	"context"
	"time"
)

// Entry is the persisted attempt state for one client origin.
type Entry struct {
	Origin          string
	Attempts        int
	WindowStartedAt time.Time
	LastAttemptAt   time.Time
	Blocked         bool
	BlockExpiresAt  time.Time
}

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// Store persists rate limit entries keyed by origin.
type Store interface {
	Get(ctx context.Context, origin string) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, origin string) error
	PurgeIdle(ctx context.Context, before time.Time) (int64, error)
}
