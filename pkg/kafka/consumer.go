package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// maxHandlerRetries is the maximum number of times a message handler will be
// attempted before the message is committed and skipped (poison pill protection).
const maxHandlerRetries = 3

// Handler is a function that processes a Kafka event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// EnableDLQ publishes messages that exhausted all retries to the
	// dead-letter topic for this topic instead of dropping them.
	EnableDLQ bool
}

// Consumer wraps the kafka-go reader for consuming events.
type Consumer struct {
	reader    *kafka.Reader
	dlq       *DLQProducer
	logger    *slog.Logger
	handler   Handler
	closeOnce sync.Once
}

// NewConsumer creates a new Kafka consumer for a specific topic and group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	c := &Consumer{
		reader:  r,
		logger:  logger,
		handler: handler,
	}
	if cfg.EnableDLQ {
		c.dlq = NewDLQProducer(cfg.Brokers, logger)
	}
	return c
}

// Start begins consuming messages. It blocks until the context is canceled.
// Handler failures are retried with backoff; messages that exhaust all
// retries are published to the DLQ (when enabled) and committed so they do
// not block the partition.
func (c *Consumer) Start(ctx context.Context) error {
	topic := c.reader.Config().Topic
	group := c.reader.Config().GroupID

	c.logger.Info("consumer started",
		slog.String("topic", topic),
		slog.String("group", group),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", slog.String("topic", topic))
			return c.Close()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
				continue
			}
			ConsumerMessagesReceived.WithLabelValues(topic, group).Inc()

			event, err := UnmarshalEvent(msg.Value)
			if err != nil {
				c.logger.Error("failed to unmarshal event",
					slog.String("error", err.Error()),
					slog.String("topic", msg.Topic),
				)
				c.sendToDLQ(ctx, msg, err, group)
				c.commit(ctx, msg)
				continue
			}

			// Resume the producer's trace context from the message headers.
			msgCtx := otel.GetTextMapPropagator().Extract(ctx, &KafkaHeaderCarrier{headers: &msg.Headers})

			var lastErr error
			for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
				start := time.Now()
				err := c.handler(msgCtx, event)
				ConsumerProcessingDuration.WithLabelValues(topic, group).Observe(time.Since(start).Seconds())
				if err == nil {
					lastErr = nil
					break
				}
				lastErr = err
				c.logger.Warn("handler failed, will retry",
					slog.String("event_type", event.EventType),
					slog.String("aggregate_id", event.AggregateID),
					slog.String("error", err.Error()),
					slog.String("topic", msg.Topic),
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
					slog.Int("attempt", attempt),
					slog.Int("max_retries", maxHandlerRetries),
				)

				if attempt < maxHandlerRetries {
					backoff := time.Duration(attempt) * 100 * time.Millisecond
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(backoff):
					}
				}
			}

			if lastErr != nil {
				ConsumerMessagesFailed.WithLabelValues(topic, group).Inc()
				c.logger.Error("handler failed after all retries, skipping poison message",
					slog.String("event_type", event.EventType),
					slog.String("aggregate_id", event.AggregateID),
					slog.String("error", lastErr.Error()),
					slog.String("topic", msg.Topic),
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
					slog.Int("retries", maxHandlerRetries),
				)
				c.sendToDLQ(ctx, msg, lastErr, group)
				c.commit(ctx, msg)
				continue
			}

			ConsumerMessagesProcessed.WithLabelValues(topic, group).Inc()
			c.commit(ctx, msg)
		}
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, cause error, group string) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, group); err != nil {
		c.logger.Error("failed to publish to DLQ", slog.String("error", err.Error()))
		return
	}
	ConsumerDLQPublished.WithLabelValues(msg.Topic, group).Inc()
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
		if c.dlq != nil {
			if dlqErr := c.dlq.Close(); err == nil {
				err = dlqErr
			}
		}
	})
	return err
}

// TopicPrefix is the standard prefix for all ratings platform Kafka topics.
const TopicPrefix = "ratings"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
