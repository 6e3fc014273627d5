package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/franciscolopezv/rating-domain-services/pkg/errors"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/domain"
)

type fakeReader struct {
	stats  map[string]*domain.ProductRatingStats
	ranked []domain.RankedProduct

	topLimit  int
	mostLimit int
}

func (f *fakeReader) GetStats(_ context.Context, productID string) (*domain.ProductRatingStats, error) {
	stats, ok := f.stats[productID]
	if !ok {
		return nil, fmt.Errorf("rating stats for product %s: %w", productID, apperrors.ErrNotFound)
	}
	return stats, nil
}

func (f *fakeReader) TopRated(_ context.Context, limit int) ([]domain.RankedProduct, error) {
	f.topLimit = limit
	return f.ranked, nil
}

func (f *fakeReader) MostReviewed(_ context.Context, limit int) ([]domain.RankedProduct, error) {
	f.mostLimit = limit
	return f.ranked, nil
}

func (f *fakeReader) Overall(_ context.Context) (*domain.OverallRatingStats, error) {
	return &domain.OverallRatingStats{TotalProducts: 2, TotalReviews: 7, AverageRating: 4.2}, nil
}

func testSchema(t *testing.T, reader *fakeReader) *graphql.Schema {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	schema, err := NewSchema(reader, logger)
	require.NoError(t, err)
	return schema
}

func exec(t *testing.T, schema *graphql.Schema, query string, variables map[string]any) map[string]any {
	t.Helper()
	resp := schema.Exec(context.Background(), query, "", variables)
	require.Empty(t, resp.Errors, "unexpected GraphQL errors: %v", resp.Errors)

	var data map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

func seededReader() *fakeReader {
	return &fakeReader{
		stats: map[string]*domain.ProductRatingStats{
			"prod-1": {
				ProductID:           "prod-1",
				ReviewCount:         4,
				RatingSum:           18,
				Distribution:        domain.Distribution{FourStar: 2, FiveStar: 2},
				LastAppliedSequence: 4,
				UpdatedAt:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			},
		},
		ranked: []domain.RankedProduct{
			{ProductID: "prod-1", AverageRating: 4.5, ReviewCount: 4},
			{ProductID: "prod-2", AverageRating: 4.0, ReviewCount: 2},
		},
	}
}

func TestProductRatingStats(t *testing.T) {
	schema := testSchema(t, seededReader())

	data := exec(t, schema, `
		query($id: ID!) {
			productRatingStats(productId: $id) {
				productId
				averageRating
				reviewCount
				ratingDistribution { fourStar fiveStar }
			}
		}`,
		map[string]any{"id": "prod-1"},
	)

	stats := data["productRatingStats"].(map[string]any)
	assert.Equal(t, "prod-1", stats["productId"])
	assert.InDelta(t, 4.5, stats["averageRating"].(float64), 0.0001)
	assert.Equal(t, float64(4), stats["reviewCount"])
	dist := stats["ratingDistribution"].(map[string]any)
	assert.Equal(t, float64(2), dist["fiveStar"])
}

func TestProductRatingStats_UnratedProductIsNull(t *testing.T) {
	schema := testSchema(t, seededReader())

	data := exec(t, schema,
		`{ productRatingStats(productId: "never-rated") { productId } }`, nil)

	assert.Nil(t, data["productRatingStats"])
}

func TestTopRatedProducts_LimitClamping(t *testing.T) {
	reader := seededReader()
	schema := testSchema(t, reader)

	data := exec(t, schema, `{ topRatedProducts(limit: 500) { productId averageRating } }`, nil)

	assert.Equal(t, domain.MaxRankingLimit, reader.topLimit)
	ranked := data["topRatedProducts"].([]any)
	require.Len(t, ranked, 2)
	assert.Equal(t, "prod-1", ranked[0].(map[string]any)["productId"])
}

func TestMostReviewedProducts_DefaultLimit(t *testing.T) {
	reader := seededReader()
	schema := testSchema(t, reader)

	exec(t, schema, `{ mostReviewedProducts { productId } }`, nil)

	assert.Equal(t, domain.DefaultRankingLimit, reader.mostLimit)
}

func TestOverallRatingStats(t *testing.T) {
	schema := testSchema(t, seededReader())

	data := exec(t, schema, `{ overallRatingStats { totalProducts totalReviews averageRating } }`, nil)

	overall := data["overallRatingStats"].(map[string]any)
	assert.Equal(t, float64(2), overall["totalProducts"])
	assert.Equal(t, float64(7), overall["totalReviews"])
	assert.InDelta(t, 4.2, overall["averageRating"].(float64), 0.0001)
}

func TestFederation_ServiceSDL(t *testing.T) {
	schema := testSchema(t, seededReader())

	data := exec(t, schema, `{ _service { sdl } }`, nil)

	sdl := data["_service"].(map[string]any)["sdl"].(string)
	assert.Contains(t, sdl, `extend type Product @key(fields: "id")`)
	assert.Contains(t, sdl, "ratingStats: ProductRatingStats")
}

func TestFederation_ResolvesProductEntities(t *testing.T) {
	schema := testSchema(t, seededReader())

	data := exec(t, schema, `
		query($reps: [_Any!]!) {
			_entities(representations: $reps) {
				... on Product {
					id
					averageRating
					ratingStats { averageRating reviewCount }
				}
			}
		}`,
		map[string]any{"reps": []any{
			map[string]any{"__typename": "Product", "id": "prod-1"},
			map[string]any{"__typename": "Product", "id": "never-rated"},
		}},
	)

	entities := data["_entities"].([]any)
	require.Len(t, entities, 2)

	rated := entities[0].(map[string]any)
	assert.Equal(t, "prod-1", rated["id"])
	assert.InDelta(t, 4.5, rated["averageRating"].(float64), 0.0001)
	assert.InDelta(t, 4.5, rated["ratingStats"].(map[string]any)["averageRating"].(float64), 0.0001)

	// Products without ratings still resolve, with null stats.
	unrated := entities[1].(map[string]any)
	assert.Equal(t, "never-rated", unrated["id"])
	assert.Nil(t, unrated["averageRating"])
	assert.Nil(t, unrated["ratingStats"])
}

func TestFederation_UnknownEntityTypeErrors(t *testing.T) {
	schema := testSchema(t, seededReader())

	resp := schema.Exec(context.Background(), `
		query($reps: [_Any!]!) {
			_entities(representations: $reps) {
				... on Product { id }
			}
		}`,
		"",
		map[string]any{"reps": []any{map[string]any{"__typename": "User", "id": "u-1"}}},
	)
	require.NotEmpty(t, resp.Errors)
}
