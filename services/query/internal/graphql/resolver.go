package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	graphql "github.com/graph-gophers/graphql-go"

	apperrors "github.com/franciscolopezv/rating-domain-services/pkg/errors"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/domain"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/repository"
)

// Any is the federation _Any scalar: an untyped entity representation sent
// by the gateway.
type Any map[string]any

// ImplementsGraphQLType marks Any as the _Any scalar.
func (Any) ImplementsGraphQLType(name string) bool { return name == "_Any" }

// UnmarshalGraphQL accepts any JSON object as an entity representation.
func (a *Any) UnmarshalGraphQL(input any) error {
	m, ok := input.(map[string]any)
	if !ok {
		return fmt.Errorf("_Any must be an object, got %T", input)
	}
	*a = m
	return nil
}

// MarshalJSON keeps _Any symmetric for introspection tooling.
func (a Any) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(a))
}

// Resolver is the root query resolver.
type Resolver struct {
	reader repository.StatsReader
	logger *slog.Logger
}

// NewResolver creates the root resolver over the given stats reader.
func NewResolver(reader repository.StatsReader, logger *slog.Logger) *Resolver {
	return &Resolver{reader: reader, logger: logger}
}

// NewSchema parses the subgraph schema bound to a root resolver.
func NewSchema(reader repository.StatsReader, logger *slog.Logger) (*graphql.Schema, error) {
	return graphql.ParseSchema(schemaSDL, NewResolver(reader, logger))
}

// ProductRatingStats returns the stats for one product, or nil when the
// product has no ratings yet.
func (r *Resolver) ProductRatingStats(ctx context.Context, args struct{ ProductID graphql.ID }) (*statsResolver, error) {
	stats, err := r.reader.GetStats(ctx, string(args.ProductID))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("product rating stats: %w", err)
	}
	return &statsResolver{stats: stats}, nil
}

// TopRatedProducts lists products by average rating.
func (r *Resolver) TopRatedProducts(ctx context.Context, args struct{ Limit *int32 }) ([]*rankedResolver, error) {
	ranked, err := r.reader.TopRated(ctx, clampLimit(args.Limit))
	if err != nil {
		return nil, fmt.Errorf("top rated products: %w", err)
	}
	return rankedResolvers(ranked), nil
}

// MostReviewedProducts lists products by review count.
func (r *Resolver) MostReviewedProducts(ctx context.Context, args struct{ Limit *int32 }) ([]*rankedResolver, error) {
	ranked, err := r.reader.MostReviewed(ctx, clampLimit(args.Limit))
	if err != nil {
		return nil, fmt.Errorf("most reviewed products: %w", err)
	}
	return rankedResolvers(ranked), nil
}

// OverallRatingStats aggregates across all rated products.
func (r *Resolver) OverallRatingStats(ctx context.Context) (*overallResolver, error) {
	overall, err := r.reader.Overall(ctx)
	if err != nil {
		return nil, fmt.Errorf("overall rating stats: %w", err)
	}
	return &overallResolver{overall: overall}, nil
}

// Service implements the federation _service field.
func (r *Resolver) Service() *serviceResolver {
	return &serviceResolver{}
}

// Entities implements the federation _entities field. The gateway sends
// entity representations; this subgraph only resolves Product.
func (r *Resolver) Entities(ctx context.Context, args struct{ Representations []Any }) ([]*entityResolver, error) {
	out := make([]*entityResolver, 0, len(args.Representations))
	for _, rep := range args.Representations {
		typename, _ := rep["__typename"].(string)
		if typename != "Product" {
			return nil, fmt.Errorf("cannot resolve entity type %q", typename)
		}
		id, _ := rep["id"].(string)
		if id == "" {
			return nil, errors.New("product representation missing id")
		}
		out = append(out, &entityResolver{product: &productResolver{id: id, reader: r.reader}})
	}
	return out, nil
}

func clampLimit(limit *int32) int {
	if limit == nil {
		return domain.DefaultRankingLimit
	}
	return domain.ClampRankingLimit(int(*limit))
}

// --- Field resolvers ---

type serviceResolver struct{}

func (*serviceResolver) SDL() string { return federationSDL }

type entityResolver struct {
	product *productResolver
}

func (e *entityResolver) ToProduct() (*productResolver, bool) {
	return e.product, e.product != nil
}

type productResolver struct {
	id     string
	reader repository.StatsReader
}

func (p *productResolver) ID() graphql.ID { return graphql.ID(p.id) }

func (p *productResolver) RatingStats(ctx context.Context) (*statsResolver, error) {
	stats, err := p.loadStats(ctx)
	if stats == nil || err != nil {
		return nil, err
	}
	return &statsResolver{stats: stats}, nil
}

func (p *productResolver) AverageRating(ctx context.Context) (*float64, error) {
	stats, err := p.loadStats(ctx)
	if stats == nil || err != nil {
		return nil, err
	}
	avg := stats.AverageRating()
	return &avg, nil
}

func (p *productResolver) ReviewCount(ctx context.Context) (*int32, error) {
	stats, err := p.loadStats(ctx)
	if stats == nil || err != nil {
		return nil, err
	}
	count := int32(stats.ReviewCount)
	return &count, nil
}

func (p *productResolver) loadStats(ctx context.Context) (*domain.ProductRatingStats, error) {
	stats, err := p.reader.GetStats(ctx, p.id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rating stats for product %s: %w", p.id, err)
	}
	return stats, nil
}

type statsResolver struct {
	stats *domain.ProductRatingStats
}

func (s *statsResolver) ProductID() graphql.ID { return graphql.ID(s.stats.ProductID) }

func (s *statsResolver) AverageRating() float64 { return s.stats.AverageRating() }

func (s *statsResolver) ReviewCount() int32 { return int32(s.stats.ReviewCount) }

func (s *statsResolver) LastUpdatedAt() graphql.Time {
	return graphql.Time{Time: s.stats.UpdatedAt}
}
func (s *statsResolver) RatingDistribution() *distributionResolver {
	return &distributionResolver{d: s.stats.Distribution}
}

type distributionResolver struct {
	d domain.Distribution
}

func (r *distributionResolver) OneStar() int32 { return int32(r.d.OneStar) }

func (r *distributionResolver) TwoStar() int32 { return int32(r.d.TwoStar) }

func (r *distributionResolver) ThreeStar() int32 { return int32(r.d.ThreeStar) }

func (r *distributionResolver) FourStar() int32 { return int32(r.d.FourStar) }

func (r *distributionResolver) FiveStar() int32 { return int32(r.d.FiveStar) }

type rankedResolver struct {
	ranked domain.RankedProduct
}

func rankedResolvers(ranked []domain.RankedProduct) []*rankedResolver {
	out := make([]*rankedResolver, len(ranked))
	for i := range ranked {
		out[i] = &rankedResolver{ranked: ranked[i]}
	}
	return out
}

func (r *rankedResolver) ProductID() graphql.ID { return graphql.ID(r.ranked.ProductID) }

func (r *rankedResolver) AverageRating() float64 { return r.ranked.AverageRating }

func (r *rankedResolver) ReviewCount() int32 { return int32(r.ranked.ReviewCount) }

type overallResolver struct {
	overall *domain.OverallRatingStats
}

func (r *overallResolver) TotalProducts() int32 { return int32(r.overall.TotalProducts) }

func (r *overallResolver) TotalReviews() int32 { return int32(r.overall.TotalReviews) }

func (r *overallResolver) AverageRating() float64 { return r.overall.AverageRating }
