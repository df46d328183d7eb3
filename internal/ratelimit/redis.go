package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisEntryTTL caps how long an idle entry lives in Redis; Redis expiry
// replaces the explicit purge used by the database-backed store.
const redisEntryTTL = 24 * time.Hour

// RedisStore keeps rate limit entries in Redis, shared across instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Get returns the entry for an origin, if present.
func (s *RedisStore) Get(ctx context.Context, origin string) (Entry, bool, error) {
	if s == nil || s.client == nil {
		return Entry{}, false, errors.New("rate limit redis: not initialized")
	}
	raw, errGet := s.client.Get(ctx, s.buildKey(origin)).Bytes()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, errGet
	}
	var entry Entry
	if errUnmarshal := json.Unmarshal(raw, &entry); errUnmarshal != nil {
		return Entry{}, false, errUnmarshal
	}
	return entry, true, nil
}

// Save stores the entry keyed by its origin.
func (s *RedisStore) Save(ctx context.Context, entry Entry) error {
	if s == nil || s.client == nil {
		return errors.New("rate limit redis: not initialized")
	}
	raw, errMarshal := json.Marshal(entry)
	if errMarshal != nil {
		return errMarshal
	}
	return s.client.Set(ctx, s.buildKey(entry.Origin), raw, redisEntryTTL).Err()
}

// Delete removes the entry for an origin.
func (s *RedisStore) Delete(ctx context.Context, origin string) error {
	if s == nil || s.client == nil {
		return errors.New("rate limit redis: not initialized")
	}
	return s.client.Del(ctx, s.buildKey(origin)).Err()
}

// PurgeIdle is a no-op for Redis; key TTLs expire idle entries.
func (s *RedisStore) PurgeIdle(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *RedisStore) buildKey(origin string) string {
	if s.prefix == "" {
		return origin
	}
	return s.prefix + ":" + origin
}
