// Package repository defines the read store contracts for the query service.
package repository

import (
	"context"

	"github.com/franciscolopezv/rating-domain-services/services/query/internal/domain"
)

// StatsReader serves rating statistics queries.
type StatsReader interface {
	// GetStats returns the stats for a product, or errors.ErrNotFound when
	// the product has no ratings yet.
	GetStats(ctx context.Context, productID string) (*domain.ProductRatingStats, error)

	// TopRated lists products by average rating, highest first. Ties break
	// on review count. Products without ratings are excluded.
	TopRated(ctx context.Context, limit int) ([]domain.RankedProduct, error)

	// MostReviewed lists products by review count, highest first.
	MostReviewed(ctx context.Context, limit int) ([]domain.RankedProduct, error)

	// Overall aggregates stats across all rated products.
	Overall(ctx context.Context) (*domain.OverallRatingStats, error)
}

// StatsStore is the full read store used by the projector.
type StatsStore interface {
	StatsReader

	// SaveStats upserts the stats row. A row whose stored
	// last_applied_sequence is already >= the given one is left untouched,
	// so replays and racing writers cannot move the projection backwards.
	SaveStats(ctx context.Context, stats *domain.ProductRatingStats) error

	// DeleteStats removes a product's stats row. Used by rebuilds.
	DeleteStats(ctx context.Context, productID string) error
}
