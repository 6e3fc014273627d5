// Package redis provides a read-through cache in front of the stats read
// store. The projector invalidates a product's entry whenever it writes new
// stats, so cached values are stale for at most the cache TTL after a
// missed invalidation.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/franciscolopezv/rating-domain-services/services/query/internal/domain"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/repository"
)

const keyPrefix = "ratings:stats:"

// CachedStatsReader decorates a StatsReader with Redis caching of per-product
// stats. Listing and aggregate queries pass through uncached; they already
// hit indexed rows.
type CachedStatsReader struct {
	inner  repository.StatsReader
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStatsReader wraps the given reader with a Redis cache.
func NewCachedStatsReader(inner repository.StatsReader, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStatsReader {
	return &CachedStatsReader{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetStats returns cached stats when present, otherwise reads through to the
// store and populates the cache. Cache failures degrade to direct reads.
func (c *CachedStatsReader) GetStats(ctx context.Context, productID string) (*domain.ProductRatingStats, error) {
	key := keyPrefix + productID

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var stats domain.ProductRatingStats
		if err := json.Unmarshal(data, &stats); err == nil {
			return &stats, nil
		}
		// Corrupt entry; fall through to the store and overwrite it.
		c.logger.Warn("dropping corrupt stats cache entry", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("stats cache read failed, falling back to store",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	stats, err := c.inner.GetStats(ctx, productID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("stats cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	return stats, nil
}

// Invalidate drops the cache entry for a product. Called by the projector
// after every stats write.
func (c *CachedStatsReader) Invalidate(ctx context.Context, productID string) error {
	if err := c.client.Del(ctx, keyPrefix+productID).Err(); err != nil {
		return fmt.Errorf("invalidate stats cache: %w", err)
	}
	return nil
}

// TopRated passes through to the store.
func (c *CachedStatsReader) TopRated(ctx context.Context, limit int) ([]domain.RankedProduct, error) {
	return c.inner.TopRated(ctx, limit)
}

// MostReviewed passes through to the store.
func (c *CachedStatsReader) MostReviewed(ctx context.Context, limit int) ([]domain.RankedProduct, error) {
	return c.inner.MostReviewed(ctx, limit)
}

// Overall passes through to the store.
func (c *CachedStatsReader) Overall(ctx context.Context) (*domain.OverallRatingStats, error) {
	return c.inner.Overall(ctx)
}

// ensure the decorator satisfies the reader contract.
var _ repository.StatsReader = (*CachedStatsReader)(nil)
