// Package domain holds the rating submission command model and its
// validation rules.
package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Rating bounds and field length limits enforced on every submission.
const (
	MinRating = 1
	MaxRating = 5

	MaxProductIDLength  = 255
	MaxUserIDLength     = 255
	MaxReviewTextLength = 2000
)

// SubmitRatingCommand is the request to record a product rating. EventID is
// an optional client-supplied idempotency key; when omitted the service
// generates one. ReviewText is optional free text.
type SubmitRatingCommand struct {
	EventID    string `json:"event_id,omitempty" validate:"omitempty,uuid"`
	ProductID  string `json:"product_id" validate:"required,max=255"`
	UserID     string `json:"user_id" validate:"required,max=255"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	ReviewText string `json:"review_text,omitempty" validate:"omitempty,max=2000"`
}

// Normalize trims identifier whitespace and sanitizes the review text.
// It must be called before validation so length limits apply to the
// sanitized values.
func (c *SubmitRatingCommand) Normalize() {
	c.ProductID = strings.TrimSpace(c.ProductID)
	c.UserID = strings.TrimSpace(c.UserID)
	c.ReviewText = SanitizeReviewText(c.ReviewText)
}

// SanitizeReviewText strips control characters (keeping newlines and tabs)
// and trims surrounding whitespace. Review text is rendered verbatim by
// clients, so stray terminal control sequences must never reach storage.
func SanitizeReviewText(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// SubmissionResult is returned after a rating has been durably recorded in
// the event log. Sequence is the per-product position assigned to the event.
// Duplicate is true when the command's event ID had already been recorded;
// the original sequence is returned in that case.
type SubmissionResult struct {
	EventID     uuid.UUID `json:"event_id"`
	ProductID   string    `json:"product_id"`
	Sequence    int64     `json:"sequence"`
	SubmittedAt time.Time `json:"submitted_at"`
	Duplicate   bool      `json:"duplicate,omitempty"`
}
