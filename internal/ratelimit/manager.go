package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager routes store operations to Redis when enabled and healthy,
// falling back to the durable store behind a breaker otherwise.
type Manager struct {
	provider       SettingsProvider
	fallback       Store
	nowFn          func() time.Time
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	redisStore   *RedisStore
	redisCfg     redisConfig
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, fallback Store, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = LoadSettingsConfig
	}
	if fallback == nil {
		fallback = NewMemoryStore()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		fallback:       fallback,
		nowFn:          nowFn,
		newRedisClient: newRedisClient,
	}
}

// Get returns the entry for an origin from the active backend.
func (m *Manager) Get(ctx context.Context, origin string) (Entry, bool, error) {
	if store, ok := m.redisBackend(ctx); ok {
		entry, found, errGet := store.Get(ctx, origin)
		if errGet == nil {
			return entry, found, nil
		}
		m.tripBreaker(errGet)
	}
	return m.fallback.Get(ctx, origin)
}

// Save stores the entry via the active backend.
func (m *Manager) Save(ctx context.Context, entry Entry) error {
	if store, ok := m.redisBackend(ctx); ok {
		errSave := store.Save(ctx, entry)
		if errSave == nil {
			return nil
		}
		m.tripBreaker(errSave)
	}
	return m.fallback.Save(ctx, entry)
}

// Delete removes the entry from every backend that may hold it.
func (m *Manager) Delete(ctx context.Context, origin string) error {
	var redisErr error
	if store, ok := m.redisBackend(ctx); ok {
		if redisErr = store.Delete(ctx, origin); redisErr != nil {
			m.tripBreaker(redisErr)
		}
	}
	if errDelete := m.fallback.Delete(ctx, origin); errDelete != nil {
		return errDelete
	}
	return redisErr
}

// PurgeIdle removes idle entries from the durable store.
func (m *Manager) PurgeIdle(ctx context.Context, before time.Time) (int64, error) {
	return m.fallback.PurgeIdle(ctx, before)
}

func (m *Manager) redisBackend(ctx context.Context) (*RedisStore, bool) {
	if m == nil {
		return nil, false
	}
	cfg := m.provider()
	if !cfg.RedisEnabled {
		return nil, false
	}
	if m.isBreakerActive(m.nowFn()) {
		return nil, false
	}
	store, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure)
		return nil, false
	}
	return store, store != nil
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error) {
	if err == nil || m == nil {
		return
	}
	now := m.nowFn()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to durable store")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisStore != nil && m.redisCfg == nextCfg {
		return m.redisStore, nil
	}
	if m.redisStore != nil {
		_ = m.redisStore.client.Close()
		m.redisStore = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisStore = NewRedisStore(client, nextCfg.prefix)
	m.redisCfg = nextCfg
	return m.redisStore, nil
}
