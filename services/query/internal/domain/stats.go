// Package domain holds the read-side rating statistics model and the event
// fold that maintains it.
package domain

import (
	"fmt"
	"time"

	"github.com/franciscolopezv/rating-domain-services/pkg/eventlog"
)

// Distribution counts ratings per star value.
type Distribution struct {
	OneStar   int64 `json:"one_star"`
	TwoStar   int64 `json:"two_star"`
	ThreeStar int64 `json:"three_star"`
	FourStar  int64 `json:"four_star"`
	FiveStar  int64 `json:"five_star"`
}

// Add increments the bucket for the given rating. Ratings outside 1..5 are
// rejected upstream and ignored here.
func (d *Distribution) Add(rating int) {
	switch rating {
	case 1:
		d.OneStar++
	case 2:
		d.TwoStar++
	case 3:
		d.ThreeStar++
	case 4:
		d.FourStar++
	case 5:
		d.FiveStar++
	}
}

// Total returns the number of ratings across all buckets.
func (d *Distribution) Total() int64 {
	return d.OneStar + d.TwoStar + d.ThreeStar + d.FourStar + d.FiveStar
}

// ProductRatingStats is the projected read model for one product. It is
// maintained by folding rating events in sequence order; LastAppliedSequence
// makes the fold idempotent under event redelivery.
type ProductRatingStats struct {
	ProductID           string       `json:"product_id"`
	ReviewCount         int64        `json:"review_count"`
	RatingSum           int64        `json:"rating_sum"`
	Distribution        Distribution `json:"distribution"`
	LastAppliedSequence int64        `json:"last_applied_sequence"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// NewProductRatingStats returns empty stats for a product.
func NewProductRatingStats(productID string) *ProductRatingStats {
	return &ProductRatingStats{ProductID: productID}
}

// AverageRating returns the mean rating, or 0 when no ratings exist.
func (s *ProductRatingStats) AverageRating() float64 {
	if s.ReviewCount == 0 {
		return 0
	}
	return float64(s.RatingSum) / float64(s.ReviewCount)
}

// Apply folds one event into the stats:
//
//   - sequence <= LastAppliedSequence: already applied, no-op
//   - sequence == LastAppliedSequence+1: applied
//   - otherwise: a gap, eventlog.ErrOutOfOrder; the caller must replay the
//     missing range from the log first
//
// The returned bool reports whether the event changed the stats.
func (s *ProductRatingStats) Apply(e *eventlog.Event) (bool, error) {
	if e.ProductID != s.ProductID {
		return false, fmt.Errorf("apply event for product %q to stats of product %q", e.ProductID, s.ProductID)
	}

	switch {
	case e.Sequence <= s.LastAppliedSequence:
		return false, nil
	case e.Sequence == s.LastAppliedSequence+1:
		s.ReviewCount++
		s.RatingSum += int64(e.Rating)
		s.Distribution.Add(e.Rating)
		s.LastAppliedSequence = e.Sequence
		s.UpdatedAt = e.SubmittedAt
		return true, nil
	default:
		return false, fmt.Errorf("product %s: have sequence %d, got %d: %w",
			e.ProductID, s.LastAppliedSequence, e.Sequence, eventlog.ErrOutOfOrder)
	}
}

// RankedProduct is one row in a top-rated or most-reviewed listing.
type RankedProduct struct {
	ProductID     string  `json:"product_id"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int64   `json:"review_count"`
}

// OverallRatingStats aggregates the read model across all products.
type OverallRatingStats struct {
	TotalProducts int64   `json:"total_products"`
	TotalReviews  int64   `json:"total_reviews"`
	AverageRating float64 `json:"average_rating"`
}

// Ranking limit bounds for top-rated and most-reviewed queries.
const (
	DefaultRankingLimit = 10
	MaxRankingLimit     = 100
)

// ClampRankingLimit normalizes a requested result limit: non-positive values
// fall back to the default, values above the maximum are capped.
func ClampRankingLimit(limit int) int {
	if limit <= 0 {
		return DefaultRankingLimit
	}
	if limit > MaxRankingLimit {
		return MaxRankingLimit
	}
	return limit
}
