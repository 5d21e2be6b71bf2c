package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is the fail-open key-value surface the rest of the system consumes.
// Implementations must degrade rather than error: a miss, a no-op, a zero
// count, or a granted lock when the backend cannot answer.
type Cache interface {
	Available() bool
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Exists(ctx context.Context, key string) bool
	IncrementWithExpiry(ctx context.Context, key string, window time.Duration) int64
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) bool
}

// Store is a fail-open key-value cache over Redis. Every operation degrades
// to a miss or no-op when the client is nil or the backend is unreachable:
// the system regenerates and stops rate limiting instead of failing requests
// while the cache is down. Errors are logged, never returned.
type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

var _ Cache = (*Store)(nil)

// NewStore wraps a Redis client. A nil client yields a permanently-degraded
// store, used when REDIS_ADDR is deliberately unset.
func NewStore(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// Available reports whether a Redis client is configured.
func (s *Store) Available() bool {
	return s != nil && s.client != nil
}

// Get returns the value for key, or ok=false on miss or backend failure.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.Available() {
		return nil, false
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return nil, false
	}
	return data, true
}

// Set stores value under key with a TTL. Failures are swallowed.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !s.Available() {
		return
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Delete removes key. Failures are swallowed.
func (s *Store) Delete(ctx context.Context, key string) {
	if !s.Available() {
		return
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

// Exists reports whether key is present; false on backend failure.
func (s *Store) Exists(ctx context.Context, key string) bool {
	if !s.Available() {
		return false
	}
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache exists failed")
		return false
	}
	return n == 1
}

// IncrementWithExpiry atomically increments the counter at key. The expiry
// is set only when the returned count is exactly 1, so later increments
// within the window never refresh the TTL. Returns 0 when the cache is
// unavailable, which callers interpret as "no limiting applied".
func (s *Store) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) int64 {
	if !s.Available() {
		return 0
	}
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("rate limit increment failed")
		return 0
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("rate limit expire failed")
		}
	}
	return count
}

// SetNX acquires key if absent, with a TTL. Fail-open returns true: when the
// cache is down there is no coordination to be had and callers must proceed.
func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if !s.Available() {
		return true
	}
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache setnx failed")
		return true
	}
	return ok
}

// Ping checks backend connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}
