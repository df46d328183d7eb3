package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joinarr/joinarr/internal/config"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(store Store, clock *fakeClock) *Limiter {
	cfg := config.RateLimitConfig{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: time.Hour,
	}
	return NewLimiter(store, cfg, clock.Now)
}

func TestCheck_BlocksWhenAttemptsExceedThreshold(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newTestLimiter(NewMemoryStore(), clock)

	for i := 0; i < 5; i++ {
		res := limiter.Check(ctx, "203.0.113.9")
		if !res.Allowed {
			t.Fatalf("attempt %d: expected allowed", i+1)
		}
	}

	res := limiter.Check(ctx, "203.0.113.9")
	if res.Allowed {
		t.Fatalf("expected sixth attempt to be denied")
	}
	if res.RetryAfter != time.Hour {
		t.Fatalf("expected retry after 1h, got %s", res.RetryAfter)
	}
}

func TestCheck_BlockedOriginReportsRemainingTime(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newTestLimiter(NewMemoryStore(), clock)

	for i := 0; i < 6; i++ {
		limiter.Check(ctx, "198.51.100.4")
	}
	clock.Advance(20 * time.Minute)

	res := limiter.Check(ctx, "198.51.100.4")
	if res.Allowed {
		t.Fatalf("expected origin to remain blocked")
	}
	if res.RetryAfter != 40*time.Minute {
		t.Fatalf("expected 40m remaining, got %s", res.RetryAfter)
	}
}

func TestCheck_WindowExpiryStartsFreshCount(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newTestLimiter(NewMemoryStore(), clock)

	for i := 0; i < 4; i++ {
		limiter.Check(ctx, "192.0.2.1")
	}
	clock.Advance(15 * time.Minute)

	res := limiter.Check(ctx, "192.0.2.1")
	if !res.Allowed {
		t.Fatalf("expected allowed after window expiry")
	}
	if res.Remaining != 4 {
		t.Fatalf("expected fresh window with 4 remaining, got %d", res.Remaining)
	}
}

func TestCheck_ExpiredBlockStartsFreshWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newTestLimiter(NewMemoryStore(), clock)

	for i := 0; i < 6; i++ {
		limiter.Check(ctx, "192.0.2.2")
	}
	clock.Advance(time.Hour + time.Second)

	res := limiter.Check(ctx, "192.0.2.2")
	if !res.Allowed {
		t.Fatalf("expected allowed after block expiry")
	}
	if res.Remaining != 4 {
		t.Fatalf("expected fresh window with 4 remaining, got %d", res.Remaining)
	}
}

func TestReset_ClearsStateAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	limiter := newTestLimiter(store, clock)

	for i := 0; i < 4; i++ {
		limiter.Check(ctx, "192.0.2.3")
	}
	limiter.Reset(ctx, "192.0.2.3")
	limiter.Reset(ctx, "192.0.2.3")

	res := limiter.Check(ctx, "192.0.2.3")
	if !res.Allowed || res.Remaining != 4 {
		t.Fatalf("expected fresh state after reset, got allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}
}

func TestRecordFailure_DoesNotCountTowardThreshold(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newTestLimiter(NewMemoryStore(), clock)

	limiter.Check(ctx, "192.0.2.4")
	limiter.RecordFailure(ctx, "192.0.2.4")
	limiter.RecordFailure(ctx, "192.0.2.4")

	res := limiter.Check(ctx, "192.0.2.4")
	if !res.Allowed {
		t.Fatalf("expected allowed")
	}
	if res.Remaining != 3 {
		t.Fatalf("expected 3 remaining after two checks, got %d", res.Remaining)
	}
}

// readErrStore simulates a storage backend whose reads fail.
type readErrStore struct {
	*MemoryStore
}

func (s *readErrStore) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("backend down")
}

func TestCheck_FailsOpenOnReadError(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newTestLimiter(&readErrStore{NewMemoryStore()}, clock)

	for i := 0; i < 20; i++ {
		if res := limiter.Check(ctx, "192.0.2.5"); !res.Allowed {
			t.Fatalf("attempt %d: expected fail-open to allow", i+1)
		}
	}
}

// blockSaveErrStore fails to persist entries that carry a block.
type blockSaveErrStore struct {
	*MemoryStore
}

func (s *blockSaveErrStore) Save(ctx context.Context, entry Entry) error {
	if entry.Blocked {
		return errors.New("backend down")
	}
	return s.MemoryStore.Save(ctx, entry)
}

func TestCheck_DeniesEvenWhenBlockWriteFails(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newTestLimiter(&blockSaveErrStore{NewMemoryStore()}, clock)

	for i := 0; i < 5; i++ {
		limiter.Check(ctx, "192.0.2.6")
	}
	res := limiter.Check(ctx, "192.0.2.6")
	if res.Allowed {
		t.Fatalf("expected denial despite block persistence failure")
	}
}

func TestPurgeIdle_RemovesStaleEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	limiter := newTestLimiter(store, clock)

	limiter.Check(ctx, "stale-origin")
	clock.Advance(25 * time.Hour)
	limiter.Check(ctx, "fresh-origin")

	removed, errPurge := limiter.PurgeIdle(ctx, 24*time.Hour)
	if errPurge != nil {
		t.Fatalf("purge: %v", errPurge)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged entry, got %d", removed)
	}
	if _, found, _ := store.Get(ctx, "fresh-origin"); !found {
		t.Fatalf("expected fresh entry to survive the purge")
	}
}
