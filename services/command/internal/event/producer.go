// Package event publishes rating notifications to Kafka. Publishing is best
// effort: the event log is the source of truth, and the projector's
// reconciliation sweep picks up anything a lost notification would miss.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/franciscolopezv/rating-domain-services/pkg/eventlog"
	pkgkafka "github.com/franciscolopezv/rating-domain-services/pkg/kafka"
)

// TopicRatingSubmitted is the notification topic for new rating events.
var TopicRatingSubmitted = pkgkafka.Topic("rating", "submitted")

// AggregateTypeProduct is the aggregate type carried in the event envelope.
const AggregateTypeProduct = "product"

// sourceName identifies this service in published event envelopes.
const sourceName = "ratings-command-service"

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rating_publish_breaker_state",
			Help: "Circuit breaker state for rating notifications (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	publishSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rating_publish_skipped_total",
			Help: "Rating notifications skipped because the publish circuit breaker was open",
		},
	)
)

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Publisher sends rating-submitted notifications through a circuit breaker.
// When Kafka is down the breaker opens and publishes are skipped instead of
// adding broker timeouts to every submission.
type Publisher struct {
	producer *pkgkafka.Producer
	breaker  *gobreaker.CircuitBreaker[any]
	logger   *slog.Logger
}

// NewPublisher wraps the Kafka producer with a circuit breaker. The breaker
// trips after 50% failures over at least 5 requests and retries after 30s.
func NewPublisher(producer *pkgkafka.Producer, logger *slog.Logger) *Publisher {
	const name = "rating-submitted-publisher"

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("publish circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}

	breakerState.WithLabelValues(name).Set(0)

	return &Publisher{
		producer: producer,
		breaker:  gobreaker.NewCircuitBreaker[any](settings),
		logger:   logger,
	}
}

// PublishRatingSubmitted sends the event to the notification topic, keyed by
// product so per-product ordering is preserved on the partition.
func (p *Publisher) PublishRatingSubmitted(ctx context.Context, e *eventlog.Event) error {
	envelope, err := pkgkafka.NewEvent(eventlog.EventTypeRatingSubmitted, e.ProductID, AggregateTypeProduct, sourceName, e)
	if err != nil {
		return fmt.Errorf("build rating event envelope: %w", err)
	}
	envelope.EventID = e.EventID.String()

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.producer.Publish(ctx, TopicRatingSubmitted, envelope)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		publishSkipped.Inc()
		p.logger.Warn("rating notification skipped, publish breaker open",
			slog.String("product_id", e.ProductID),
			slog.Int64("sequence", e.Sequence),
		)
		return nil
	}
	return err
}
