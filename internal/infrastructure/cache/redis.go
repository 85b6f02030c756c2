package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

const statsKey = "pricetracker:stats"

// RedisStatsCache memoizes the catalog stats aggregate between crawls so the
// stats endpoint does not hit Postgres on every page load.
type RedisStatsCache struct {
	rdb *rd.Client
	ttl time.Duration
}

var _ ports.StatsCache = (*RedisStatsCache)(nil)

// NewRedisStatsCache connects a client; ttl bounds staleness to well under
// the crawl cadence.
func NewRedisStatsCache(addr string, db int, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{
		rdb: rd.NewClient(&rd.Options{Addr: addr, DB: db}),
		ttl: ttl,
	}
}

// GetStats returns the cached aggregate; found=false on miss.
func (c *RedisStatsCache) GetStats(ctx context.Context) (domain.CatalogStats, bool, error) {
	raw, err := c.rdb.Get(ctx, statsKey).Bytes()
	if errors.Is(err, rd.Nil) {
		return domain.CatalogStats{}, false, nil
	}
	if err != nil {
		return domain.CatalogStats{}, false, fmt.Errorf("redis get: %w", err)
	}

	var stats domain.CatalogStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.CatalogStats{}, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return stats, true, nil
}

// PutStats stores the aggregate under the configured TTL.
func (c *RedisStatsCache) PutStats(ctx context.Context, stats domain.CatalogStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.rdb.Set(ctx, statsKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *RedisStatsCache) Close() error {
	return c.rdb.Close()
}
