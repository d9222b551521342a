package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var isBlacklistedDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "memberhub_is_user_blacklisted_duration_ms",
	Help:    "Latency of user blacklist checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const blacklistKeyPrefix = "prl:user:"

// RedisStore is the production blacklist: multiple service instances share
// revocation state, so logout is immediate on all devices.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// BlacklistUser adds the user to the blacklist with TTL.
// Uses Redis SET-with-expiry for atomicity.
func (s *RedisStore) BlacklistUser(ctx context.Context, userID string, ttl time.Duration) error {
	if userID == "" {
		return nil
	}
	key := blacklistKeyPrefix + userID
	// Store "1" as a simple marker; the key existence is what matters.
	return s.client.Set(ctx, key, "1", ttl).Err()
}

// IsBlacklisted checks the blacklist. Returns false if the key doesn't exist
// (never blacklisted, or the TTL expired).
func (s *RedisStore) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	start := time.Now()
	defer func() {
		isBlacklistedDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if userID == "" {
		return false, nil
	}
	key := blacklistKeyPrefix + userID
	_, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
