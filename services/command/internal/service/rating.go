// Package service implements the rating submission command handler.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/franciscolopezv/rating-domain-services/pkg/errors"
	"github.com/franciscolopezv/rating-domain-services/pkg/eventlog"
	"github.com/franciscolopezv/rating-domain-services/pkg/validator"
	"github.com/franciscolopezv/rating-domain-services/services/command/internal/domain"
)

var (
	ratingsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratings_submitted_total",
			Help: "Total number of rating events appended to the log",
		},
	)

	ratingsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratings_submitted_duplicate_total",
			Help: "Total number of rating submissions deduplicated by event ID",
		},
	)
)

// Publisher sends a notification that an event was appended to the log.
type Publisher interface {
	PublishRatingSubmitted(ctx context.Context, e *eventlog.Event) error
}

// RatingService validates rating submissions, appends them to the event log,
// and emits a best-effort Kafka notification. The append is the commit point:
// a submission is acknowledged once it is durably in the log, whether or not
// the notification goes out.
type RatingService struct {
	log       eventlog.EventLog
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewRatingService creates the command handler.
func NewRatingService(log eventlog.EventLog, publisher Publisher, logger *slog.Logger) *RatingService {
	return &RatingService{
		log:       log,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitRating handles a rating submission command. A client-supplied event
// ID makes retries idempotent: resubmitting the same event ID returns the
// originally assigned sequence without growing the log.
func (s *RatingService) SubmitRating(ctx context.Context, cmd *domain.SubmitRatingCommand) (*domain.SubmissionResult, error) {
	cmd.Normalize()
	if err := validator.Validate(cmd); err != nil {
		return nil, err
	}

	eventID := uuid.New()
	if cmd.EventID != "" {
		parsed, err := uuid.Parse(cmd.EventID)
		if err != nil {
			return nil, apperrors.InvalidInput("event_id must be a valid UUID")
		}
		eventID = parsed
	}

	event := &eventlog.Event{
		EventID:     eventID,
		ProductID:   cmd.ProductID,
		UserID:      cmd.UserID,
		Rating:      cmd.Rating,
		ReviewText:  cmd.ReviewText,
		SubmittedAt: s.now().UTC(),
	}

	seq, err := s.log.Append(ctx, event)
	switch {
	case errors.Is(err, eventlog.ErrDuplicateEvent):
		ratingsDuplicate.Inc()
		s.logger.InfoContext(ctx, "duplicate rating submission",
			slog.String("event_id", eventID.String()),
			slog.String("product_id", cmd.ProductID),
			slog.Int64("sequence", seq),
		)
		return &domain.SubmissionResult{
			EventID:     eventID,
			ProductID:   cmd.ProductID,
			Sequence:    seq,
			SubmittedAt: event.SubmittedAt,
			Duplicate:   true,
		}, nil
	case errors.Is(err, context.DeadlineExceeded):
		return nil, apperrors.DeadlineExceeded("append rating event")
	case err != nil:
		return nil, apperrors.Unavailable("event log", fmt.Errorf("append rating event: %w", err))
	}

	ratingsSubmitted.Inc()
	event.Sequence = seq

	// The log append is the commit point. A failed notification only delays
	// the projection until the next reconciliation sweep.
	if err := s.publisher.PublishRatingSubmitted(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "rating notification publish failed",
			slog.String("event_id", eventID.String()),
			slog.String("product_id", cmd.ProductID),
			slog.Int64("sequence", seq),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "rating submitted",
		slog.String("event_id", eventID.String()),
		slog.String("product_id", cmd.ProductID),
		slog.Int("rating", cmd.Rating),
		slog.Int64("sequence", seq),
	)

	return &domain.SubmissionResult{
		EventID:     eventID,
		ProductID:   cmd.ProductID,
		Sequence:    seq,
		SubmittedAt: event.SubmittedAt,
	}, nil
}
