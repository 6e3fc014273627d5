package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscolopezv/rating-domain-services/pkg/eventlog"
	"github.com/franciscolopezv/rating-domain-services/pkg/httputil"
	"github.com/franciscolopezv/rating-domain-services/services/command/internal/service"
)

type nopPublisher struct{}

func (nopPublisher) PublishRatingSubmitted(context.Context, *eventlog.Event) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := service.NewRatingService(eventlog.NewMemoryEventLog(), nopPublisher{}, logger)

	r := chi.NewRouter()
	r.Route("/api/v1/ratings", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Post("/", NewRatingHandler(svc, logger).SubmitRating)
	})
	return r
}

func postRating(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ratings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitRating_Accepted(t *testing.T) {
	router := newTestRouter(t)

	rec := postRating(t, router, `{"product_id":"prod-1","user_id":"user-1","rating":5,"review_text":"excellent"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Data struct {
			EventID   string `json:"event_id"`
			ProductID string `json:"product_id"`
			Sequence  int64  `json:"sequence"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Data.EventID)
	assert.Equal(t, "prod-1", resp.Data.ProductID)
	assert.Equal(t, int64(1), resp.Data.Sequence)
}

func TestSubmitRating_InvalidRating_Returns400(t *testing.T) {
	router := newTestRouter(t)

	rec := postRating(t, router, `{"product_id":"prod-1","user_id":"user-1","rating":9}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "rating")
}

func TestSubmitRating_MissingFields_Returns400(t *testing.T) {
	router := newTestRouter(t)

	rec := postRating(t, router, `{"rating":3}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Fields, "product_id")
	assert.Contains(t, resp.Error.Fields, "user_id")
}

func TestSubmitRating_MalformedJSON_Returns400(t *testing.T) {
	router := newTestRouter(t)

	rec := postRating(t, router, `{broken`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestSubmitRating_ReviewTextTooLong_Returns400(t *testing.T) {
	router := newTestRouter(t)

	body := `{"product_id":"prod-1","user_id":"user-1","rating":4,"review_text":"` +
		strings.Repeat("x", 2001) + `"}`
	rec := postRating(t, router, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRating_DuplicateEventID_Returns200(t *testing.T) {
	router := newTestRouter(t)

	body := `{"event_id":"550e8400-e29b-41d4-a716-446655440000","product_id":"prod-1","user_id":"user-1","rating":4}`

	first := postRating(t, router, body)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := postRating(t, router, body)
	require.Equal(t, http.StatusOK, second.Code)

	var resp struct {
		Data struct {
			Sequence  int64 `json:"sequence"`
			Duplicate bool  `json:"duplicate"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(second.Body).Decode(&resp))
	assert.True(t, resp.Data.Duplicate)
	assert.Equal(t, int64(1), resp.Data.Sequence)
}

func TestContentTypeJSON_RejectsNonJSON(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ratings", bytes.NewBufferString("product_id=prod-1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestContentTypeJSON_AcceptsCharsetSuffix(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ratings",
		bytes.NewBufferString(`{"product_id":"prod-1","user_id":"user-1","rating":3}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}
