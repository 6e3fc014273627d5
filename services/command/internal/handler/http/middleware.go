package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/franciscolopezv/rating-domain-services/pkg/httputil"
	"github.com/franciscolopezv/rating-domain-services/pkg/validator"
)

// ContentTypeJSON rejects requests with a body whose Content-Type is not
// application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isValidationError reports whether the error carries field-level validation
// details that should be rendered as a 400 with a fields map.
func isValidationError(err error) bool {
	var valErr *validator.ValidationError
	return errors.As(err, &valErr)
}
