// Package http exposes the rating submission API.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/franciscolopezv/rating-domain-services/pkg/httputil"
	"github.com/franciscolopezv/rating-domain-services/services/command/internal/domain"
	"github.com/franciscolopezv/rating-domain-services/services/command/internal/service"
)

// RatingHandler handles HTTP requests for rating submissions.
type RatingHandler struct {
	service *service.RatingService
	logger  *slog.Logger
}

// NewRatingHandler creates a new rating HTTP handler.
func NewRatingHandler(svc *service.RatingService, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{
		service: svc,
		logger:  logger,
	}
}

// SubmitRating handles POST /api/v1/ratings
func (h *RatingHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 64KB; the largest legitimate payload is a 2000
	// character review.
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var cmd domain.SubmitRatingCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	result, err := h.service.SubmitRating(r.Context(), &cmd)
	if err != nil {
		if isValidationError(err) {
			httputil.WriteValidationError(w, err)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: result})
}
