// Package http exposes the query service over HTTP: the GraphQL endpoint,
// health and metrics endpoints, and the admin projection routes.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/franciscolopezv/rating-domain-services/pkg/health"
	"github.com/franciscolopezv/rating-domain-services/pkg/middleware"
)

// NewRouter creates a chi router with all query service routes registered.
func NewRouter(
	schema *graphql.Schema,
	projector RebuildProjector,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofAllowedCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("ratings-query"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("ratings-query"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, pprofAllowedCIDRs, logger)

	// GraphQL endpoint (federation subgraph).
	r.Handle("/graphql", &relay.Handler{Schema: schema})

	// Admin projection endpoints
	adminHandler := NewAdminHandler(projector, logger)
	r.Route("/admin/v1/projections", func(r chi.Router) {
		r.Post("/{productID}/rebuild", adminHandler.RebuildProduct)
		r.Get("/stalled", adminHandler.StalledProducts)
	})

	return r
}
