// Package eventlog provides the append-only rating event log that feeds the
// read-side projections. Events are partitioned by product and carry a
// gap-free sequence number per product, starting at 1. The log is the source
// of truth; Kafka only carries notifications about new entries.
package eventlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventTypeRatingSubmitted is the single event type in the rating domain.
const EventTypeRatingSubmitted = "rating.submitted"

var (
	// ErrOutOfOrder is returned when an event's sequence does not directly
	// follow the last applied sequence for its product. The caller must
	// fetch the missing range from the log before applying.
	ErrOutOfOrder = errors.New("eventlog: event out of order")

	// ErrDuplicateEvent is returned by Append when an event with the same
	// event ID has already been recorded. The original sequence is returned
	// alongside so callers can treat the append as idempotent.
	ErrDuplicateEvent = errors.New("eventlog: duplicate event")
)

// Event is a single rating submission recorded in the log. Sequence is
// assigned by the log on append and is contiguous per product.
type Event struct {
	EventID     uuid.UUID `json:"event_id"`
	ProductID   string    `json:"product_id"`
	Sequence    int64     `json:"sequence"`
	UserID      string    `json:"user_id"`
	Rating      int       `json:"rating"`
	ReviewText  string    `json:"review_text,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// EventLog is the append-only store of rating events.
type EventLog interface {
	// Append records the event and assigns it the next sequence for its
	// product. Appending an event ID that already exists returns the
	// originally assigned sequence and ErrDuplicateEvent.
	Append(ctx context.Context, event *Event) (int64, error)

	// ReadFrom returns up to limit events for the product with sequence
	// >= fromSeq, in ascending sequence order. A limit <= 0 means no limit.
	ReadFrom(ctx context.Context, productID string, fromSeq int64, limit int) ([]Event, error)

	// LatestSequence returns the highest assigned sequence for the product,
	// or 0 if the product has no events.
	LatestSequence(ctx context.Context, productID string) (int64, error)

	// LatestSequences returns the highest assigned sequence for every
	// product present in the log. Used by the projector's reconciliation
	// sweep to find partitions that missed notifications.
	LatestSequences(ctx context.Context) (map[string]int64, error)
}
