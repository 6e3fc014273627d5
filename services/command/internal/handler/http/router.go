package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/franciscolopezv/rating-domain-services/pkg/health"
	"github.com/franciscolopezv/rating-domain-services/pkg/middleware"
	"github.com/franciscolopezv/rating-domain-services/services/command/internal/service"
)

// NewRouter creates a chi router with all command service routes registered.
func NewRouter(
	ratingService *service.RatingService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofAllowedCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("ratings-command"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("ratings-command"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, pprofAllowedCIDRs, logger)

	// Rating API endpoints
	ratingHandler := NewRatingHandler(ratingService, logger)

	r.Route("/api/v1/ratings", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", ratingHandler.SubmitRating)
	})

	return r
}
