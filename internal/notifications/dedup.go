package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/krishisakhi/farm-alerts/internal/rules"
)

const dedupKeyPrefix = "farm-alerts:sent"

// Guard remembers which alerts were already sent today.
type Guard interface {
	// Claim returns true if key has not been claimed yet and records it.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key, best effort.
	Release(ctx context.Context, key string)
}

// DedupKey identifies one alert for one user on one calendar day. Activity
// alerts include the entry so two due crops both get reminders.
func DedupKey(uid string, alert rules.Alert, now time.Time) string {
	day := now.Format("2006-01-02")
	if alert.Entry != nil {
		return fmt.Sprintf("%s:%s:%s:%s:%s", dedupKeyPrefix, uid, alert.Rule, alert.Entry, day)
	}
	return fmt.Sprintf("%s:%s:%s:%s", dedupKeyPrefix, uid, alert.Rule, day)
}

// noopGuard claims everything, so every run re-sends every due alert.
type noopGuard struct{}

func (noopGuard) Claim(context.Context, string) (bool, error) { return true, nil }
func (noopGuard) Release(context.Context, string)             {}

// RedisGuard stores claimed keys in Redis with SET NX and a TTL.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGuard creates a guard. ttl should exceed one day so a key
// outlives the date it names.
func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 36 * time.Hour
	}
	return &RedisGuard{client: client, ttl: ttl, logger: logger}
}

// Claim sets key if absent.
func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes key.
func (g *RedisGuard) Release(ctx context.Context, key string) {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		g.logger.Warn("dedup release failed", "key", key, "error", err)
	}
}

// Ping verifies the Redis connection.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
