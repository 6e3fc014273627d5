package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/franciscolopezv/rating-domain-services/pkg/httputil"
)

// RebuildProjector is the projection surface the admin routes operate on.
type RebuildProjector interface {
	Rebuild(ctx context.Context, productID string) error
	StalledProducts() []string
}

// AdminHandler serves the projection maintenance endpoints.
type AdminHandler struct {
	projector RebuildProjector
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(projector RebuildProjector, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{projector: projector, logger: logger}
}

// RebuildProduct discards a product's projected stats and refolds its full
// event history from the log.
func (h *AdminHandler) RebuildProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "product id is required"},
		})
		return
	}

	if err := h.projector.Rebuild(r.Context(), productID); err != nil {
		h.logger.ErrorContext(r.Context(), "projection rebuild failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"product_id": productID, "status": "rebuilt"},
	})
}

// StalledProducts lists products whose projection is stalled behind the log.
func (h *AdminHandler) StalledProducts(w http.ResponseWriter, r *http.Request) {
	stalled := h.projector.StalledProducts()
	if stalled == nil {
		stalled = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string][]string{"stalled_products": stalled},
	})
}
