package weather

import (
	"context"
	"strings"
	"time"

	"github.com/krishisakhi/farm-alerts/internal/cache"
	"github.com/krishisakhi/farm-alerts/internal/farm"
)

// CachedFetcher serves repeat lookups for the same city from memory within
// one alert run. The runner calls Reset before each run so readings are
// never carried into the next one. Failures are not cached.
type CachedFetcher struct {
	next  Fetcher
	cache *cache.Cache[farm.WeatherSnapshot]
}

// NewCachedFetcher wraps next with a per-city cache. ttl <= 0 passes every
// call through.
func NewCachedFetcher(next Fetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		next:  next,
		cache: cache.New[farm.WeatherSnapshot](ttl),
	}
}

// Fetch returns a cached snapshot for city if one is fresh.
func (f *CachedFetcher) Fetch(ctx context.Context, city string) (farm.WeatherSnapshot, error) {
	key := strings.ToLower(strings.TrimSpace(city))
	if snap, ok := f.cache.Get(key); ok {
		return snap, nil
	}
	snap, err := f.next.Fetch(ctx, city)
	if err != nil {
		return snap, err
	}
	f.cache.Set(key, snap)
	return snap, nil
}

// Reset drops every cached city.
func (f *CachedFetcher) Reset() int {
	return f.cache.Clear()
}

// Stats exposes cache statistics for health checks.
func (f *CachedFetcher) Stats() map[string]interface{} {
	return f.cache.Stats()
}
