package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/joinarr/joinarr/internal/config"
	log "github.com/sirupsen/logrus"
)

// lockStripes bounds the number of per-origin mutexes.
const lockStripes = 64

// Limiter enforces the attempt window and block policy for client origins.
//
// Every non-blocked Check increments the origin's attempt counter, whether or
// not the eventual credential check succeeds; rapid legitimate retries count
// toward the threshold the same as failures. Reset is called only after a
// fully successful authentication.
type Limiter struct {
	store         Store
	maxAttempts   int
	window        time.Duration
	blockDuration time.Duration
	nowFn         func() time.Time

	locks [lockStripes]sync.Mutex
}

// NewLimiter constructs a Limiter over a store with the given settings.
func NewLimiter(store Store, cfg config.RateLimitConfig, nowFn func() time.Time) *Limiter {
	if nowFn == nil {
		nowFn = time.Now
	}
	defaults := config.DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = defaults.BlockDuration
	}
	return &Limiter{
		store:         store,
		maxAttempts:   cfg.MaxAttempts,
		window:        cfg.Window,
		blockDuration: cfg.BlockDuration,
		nowFn:         nowFn,
	}
}

// Check gates a credential-bearing request from an origin.
//
// A blocked origin is denied with the remaining block time. Otherwise the
// attempt counter is incremented; pushing it past the threshold transitions
// the entry to blocked and denies the current request.
func (l *Limiter) Check(ctx context.Context, origin string) Result {
	if l == nil || origin == "" {
		return Result{Allowed: true}
	}
	lock := l.lockFor(origin)
	lock.Lock()
	defer lock.Unlock()

	now := l.nowFn()
	entry, found := l.load(ctx, origin)

	if found && entry.Blocked {
		if now.Before(entry.BlockExpiresAt) {
			return Result{Allowed: false, RetryAfter: entry.BlockExpiresAt.Sub(now)}
		}
		// Expired block: the origin starts over with a fresh window.
		found = false
	}

	if !found || !now.Before(entry.WindowStartedAt.Add(l.window)) {
		entry = Entry{Origin: origin, WindowStartedAt: now}
	}
	entry.Attempts++
	entry.LastAttemptAt = now

	if entry.Attempts > l.maxAttempts {
		entry.Blocked = true
		entry.BlockExpiresAt = now.Add(l.blockDuration)
		if errSave := l.store.Save(ctx, entry); errSave != nil {
			// A block decision must not be dropped silently; deny anyway.
			log.WithError(errSave).Errorf("rate limit: persist block for %s failed", origin)
		}
		return Result{Allowed: false, RetryAfter: l.blockDuration}
	}

	if errSave := l.store.Save(ctx, entry); errSave != nil {
		log.WithError(errSave).Warnf("rate limit: persist attempt for %s failed", origin)
	}
	return Result{Allowed: true, Remaining: l.maxAttempts - entry.Attempts}
}

// RecordFailure marks a failed credential check for bookkeeping. Counting
// happens in Check; this only refreshes the last-attempt timestamp used for
// idle garbage collection.
func (l *Limiter) RecordFailure(ctx context.Context, origin string) {
	if l == nil || origin == "" {
		return
	}
	lock := l.lockFor(origin)
	lock.Lock()
	defer lock.Unlock()

	now := l.nowFn()
	entry, found := l.load(ctx, origin)
	if !found {
		entry = Entry{Origin: origin, WindowStartedAt: now}
	}
	entry.LastAttemptAt = now

	if errSave := l.store.Save(ctx, entry); errSave != nil {
		log.WithError(errSave).Warnf("rate limit: record failure for %s failed", origin)
	}
}

// Reset clears an origin's entry after a fully successful authentication.
// Resetting an absent entry is a no-op, so repeated resets are idempotent.
func (l *Limiter) Reset(ctx context.Context, origin string) {
	if l == nil || origin == "" {
		return
	}
	lock := l.lockFor(origin)
	lock.Lock()
	defer lock.Unlock()

	if errDelete := l.store.Delete(ctx, origin); errDelete != nil {
		log.WithError(errDelete).Warnf("rate limit: reset %s failed", origin)
	}
}

// PurgeIdle removes entries idle longer than the given duration, regardless
// of block state.
func (l *Limiter) PurgeIdle(ctx context.Context, idle time.Duration) (int64, error) {
	if l == nil || idle <= 0 {
		return 0, nil
	}
	return l.store.PurgeIdle(ctx, l.nowFn().Add(-idle))
}

// load treats storage read failures as no prior entries: abuse prevention
// fails open rather than denying legitimate traffic.
func (l *Limiter) load(ctx context.Context, origin string) (Entry, bool) {
	entry, found, errGet := l.store.Get(ctx, origin)
	if errGet != nil {
		log.WithError(errGet).Warnf("rate limit: read %s failed", origin)
		return Entry{}, false
	}
	return entry, found
}

func (l *Limiter) lockFor(origin string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(origin))
	return &l.locks[h.Sum32()%lockStripes]
}
