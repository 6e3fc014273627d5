// Package event consumes rating submission notifications and feeds them to
// the projector. Kafka is a notification channel only; the projector reads
// the event log directly whenever a notification arrives out of order.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/franciscolopezv/rating-domain-services/pkg/eventlog"
	pkgkafka "github.com/franciscolopezv/rating-domain-services/pkg/kafka"
)

// TopicRatingSubmitted is the topic carrying rating submission notifications.
var TopicRatingSubmitted = pkgkafka.Topic("rating", "submitted")

// Projector applies rating events to the read model.
type Projector interface {
	Apply(ctx context.Context, e *eventlog.Event) error
}

// NewRatingSubmittedHandler returns a Kafka handler that unwraps the event
// envelope and hands the rating event to the projector.
func NewRatingSubmittedHandler(projector Projector, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, envelope *pkgkafka.Event) error {
		if envelope.EventType != eventlog.EventTypeRatingSubmitted {
			logger.WarnContext(ctx, "ignoring unexpected event type",
				slog.String("event_type", envelope.EventType),
				slog.String("aggregate_id", envelope.AggregateID),
			)
			return nil
		}

		var e eventlog.Event
		if err := envelope.UnmarshalData(&e); err != nil {
			return fmt.Errorf("decode rating event %s: %w", envelope.EventID, err)
		}
		if e.ProductID == "" || e.Sequence < 1 {
			return fmt.Errorf("malformed rating event %s: product %q sequence %d",
				envelope.EventID, e.ProductID, e.Sequence)
		}

		logger.DebugContext(ctx, "rating notification received",
			slog.String("product_id", e.ProductID),
			slog.Int64("sequence", e.Sequence),
		)
		return projector.Apply(ctx, &e)
	}
}
