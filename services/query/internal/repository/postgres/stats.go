// Package postgres implements the rating stats read store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/franciscolopezv/rating-domain-services/pkg/database"
	apperrors "github.com/franciscolopezv/rating-domain-services/pkg/errors"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/domain"
)

// StatsRepository stores projected rating statistics in the
// product_rating_stats table.
type StatsRepository struct {
	db database.DBTX
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db database.DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats returns the stats row for a product.
func (r *StatsRepository) GetStats(ctx context.Context, productID string) (*domain.ProductRatingStats, error) {
	ctx, end := database.TraceQuery(ctx, "GetRatingStats", "SELECT FROM product_rating_stats")
	var err error
	defer func() { end(err) }()

	stats := domain.ProductRatingStats{ProductID: productID}
	err = r.db.QueryRow(ctx, `
		SELECT review_count, rating_sum, one_star, two_star, three_star, four_star, five_star,
		       last_applied_sequence, updated_at
		FROM product_rating_stats
		WHERE product_id = $1`,
		productID,
	).Scan(
		&stats.ReviewCount, &stats.RatingSum,
		&stats.Distribution.OneStar, &stats.Distribution.TwoStar, &stats.Distribution.ThreeStar,
		&stats.Distribution.FourStar, &stats.Distribution.FiveStar,
		&stats.LastAppliedSequence, &stats.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = apperrors.ErrNotFound
		return nil, fmt.Errorf("rating stats for product %s: %w", productID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get rating stats: %w", err)
	}

	return &stats, nil
}

// SaveStats upserts the stats row. The sequence guard makes the write a
// no-op when the stored row is already at or past the given sequence.
func (r *StatsRepository) SaveStats(ctx context.Context, stats *domain.ProductRatingStats) error {
	ctx, end := database.TraceQuery(ctx, "SaveRatingStats", "INSERT INTO product_rating_stats ON CONFLICT")
	var err error
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, `
		INSERT INTO product_rating_stats
			(product_id, review_count, rating_sum, one_star, two_star, three_star, four_star, five_star,
			 last_applied_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (product_id) DO UPDATE SET
			review_count          = EXCLUDED.review_count,
			rating_sum            = EXCLUDED.rating_sum,
			one_star              = EXCLUDED.one_star,
			two_star              = EXCLUDED.two_star,
			three_star            = EXCLUDED.three_star,
			four_star             = EXCLUDED.four_star,
			five_star             = EXCLUDED.five_star,
			last_applied_sequence = EXCLUDED.last_applied_sequence,
			updated_at            = EXCLUDED.updated_at
		WHERE product_rating_stats.last_applied_sequence < EXCLUDED.last_applied_sequence`,
		stats.ProductID, stats.ReviewCount, stats.RatingSum,
		stats.Distribution.OneStar, stats.Distribution.TwoStar, stats.Distribution.ThreeStar,
		stats.Distribution.FourStar, stats.Distribution.FiveStar,
		stats.LastAppliedSequence, stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save rating stats: %w", err)
	}
	return nil
}

// DeleteStats removes a product's stats row.
func (r *StatsRepository) DeleteStats(ctx context.Context, productID string) error {
	ctx, end := database.TraceQuery(ctx, "DeleteRatingStats", "DELETE FROM product_rating_stats")
	var err error
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, `DELETE FROM product_rating_stats WHERE product_id = $1`, productID)
	if err != nil {
		return fmt.Errorf("delete rating stats: %w", err)
	}
	return nil
}

// TopRated lists products by average rating, highest first.
func (r *StatsRepository) TopRated(ctx context.Context, limit int) ([]domain.RankedProduct, error) {
	ctx, end := database.TraceQuery(ctx, "TopRatedProducts", "SELECT FROM product_rating_stats ORDER BY avg")
	var err error
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, `
		SELECT product_id, rating_sum, review_count
		FROM product_rating_stats
		WHERE review_count > 0
		ORDER BY rating_sum::numeric / review_count DESC, review_count DESC, product_id ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top rated products: %w", err)
	}
	defer rows.Close()

	return scanRanked(rows)
}

// MostReviewed lists products by review count, highest first.
func (r *StatsRepository) MostReviewed(ctx context.Context, limit int) ([]domain.RankedProduct, error) {
	ctx, end := database.TraceQuery(ctx, "MostReviewedProducts", "SELECT FROM product_rating_stats ORDER BY review_count")
	var err error
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, `
		SELECT product_id, rating_sum, review_count
		FROM product_rating_stats
		WHERE review_count > 0
		ORDER BY review_count DESC, product_id ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("most reviewed products: %w", err)
	}
	defer rows.Close()

	return scanRanked(rows)
}

// Overall aggregates the read model across all rated products.
func (r *StatsRepository) Overall(ctx context.Context) (*domain.OverallRatingStats, error) {
	ctx, end := database.TraceQuery(ctx, "OverallRatingStats", "SELECT aggregates FROM product_rating_stats")
	var err error
	defer func() { end(err) }()

	var totalProducts, totalReviews, ratingSum int64
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(review_count), 0), COALESCE(SUM(rating_sum), 0)
		FROM product_rating_stats
		WHERE review_count > 0`,
	).Scan(&totalProducts, &totalReviews, &ratingSum)
	if err != nil {
		return nil, fmt.Errorf("overall rating stats: %w", err)
	}

	overall := &domain.OverallRatingStats{
		TotalProducts: totalProducts,
		TotalReviews:  totalReviews,
	}
	if totalReviews > 0 {
		overall.AverageRating = float64(ratingSum) / float64(totalReviews)
	}
	return overall, nil
}

func scanRanked(rows pgx.Rows) ([]domain.RankedProduct, error) {
	var ranked []domain.RankedProduct
	for rows.Next() {
		var productID string
		var ratingSum, reviewCount int64
		if err := rows.Scan(&productID, &ratingSum, &reviewCount); err != nil {
			return nil, fmt.Errorf("scan ranked product: %w", err)
		}
		rp := domain.RankedProduct{
			ProductID:   productID,
			ReviewCount: reviewCount,
		}
		if reviewCount > 0 {
			rp.AverageRating = float64(ratingSum) / float64(reviewCount)
		}
		ranked = append(ranked, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranked products: %w", err)
	}
	return ranked, nil
}
