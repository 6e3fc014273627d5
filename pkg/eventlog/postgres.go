package eventlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/franciscolopezv/rating-domain-services/pkg/database"
)

// PostgresEventLog stores rating events in the rating_events table. Sequence
// assignment is serialized per product with a transaction-scoped advisory
// lock, so concurrent appends for the same product never produce gaps or
// duplicates.
type PostgresEventLog struct {
	db database.DBTX
}

// NewPostgresEventLog creates an event log backed by the given database.
func NewPostgresEventLog(db database.DBTX) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

// Append records the event under the next per-product sequence. A duplicate
// event ID returns the originally assigned sequence and ErrDuplicateEvent.
func (l *PostgresEventLog) Append(ctx context.Context, event *Event) (int64, error) {
	ctx, end := database.TraceQuery(ctx, "AppendRatingEvent", "INSERT INTO rating_events")
	var err error
	defer func() { end(err) }()

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize appends per product. The lock is released on commit/rollback.
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, event.ProductID); err != nil {
		return 0, fmt.Errorf("acquire product lock: %w", err)
	}

	var existing int64
	err = tx.QueryRow(ctx, `SELECT sequence FROM rating_events WHERE event_id = $1`, event.EventID).Scan(&existing)
	if err == nil {
		return existing, ErrDuplicateEvent
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("check duplicate event: %w", err)
	}

	var seq int64
	err = tx.QueryRow(ctx, `
		INSERT INTO rating_events (event_id, product_id, sequence, user_id, rating, review_text, submitted_at)
		SELECT $1, $2, COALESCE(MAX(sequence), 0) + 1, $3, $4, NULLIF($5, ''), $6
		FROM rating_events WHERE product_id = $2
		RETURNING sequence`,
		event.EventID, event.ProductID, event.UserID, event.Rating, event.ReviewText, event.SubmittedAt,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("insert rating event: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append tx: %w", err)
	}

	event.Sequence = seq
	return seq, nil
}

// ReadFrom returns events for the product with sequence >= fromSeq in
// ascending order, up to limit rows (limit <= 0 means all).
func (l *PostgresEventLog) ReadFrom(ctx context.Context, productID string, fromSeq int64, limit int) ([]Event, error) {
	ctx, end := database.TraceQuery(ctx, "ReadRatingEvents", "SELECT FROM rating_events")
	var err error
	defer func() { end(err) }()

	query := `
		SELECT event_id, product_id, sequence, user_id, rating, COALESCE(review_text, ''), submitted_at
		FROM rating_events
		WHERE product_id = $1 AND sequence >= $2
		ORDER BY sequence ASC`
	args := []any{productID, fromSeq}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read rating events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err = rows.Scan(&e.EventID, &e.ProductID, &e.Sequence, &e.UserID, &e.Rating, &e.ReviewText, &e.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan rating event: %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating events: %w", err)
	}

	return events, nil
}

// LatestSequence returns the highest sequence for the product, or 0 when the
// product has no events.
func (l *PostgresEventLog) LatestSequence(ctx context.Context, productID string) (int64, error) {
	ctx, end := database.TraceQuery(ctx, "LatestRatingSequence", "SELECT MAX(sequence) FROM rating_events")
	var err error
	defer func() { end(err) }()

	var seq int64
	err = l.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM rating_events WHERE product_id = $1`,
		productID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("latest sequence: %w", err)
	}
	return seq, nil
}

// LatestSequences returns the highest sequence per product across the log.
func (l *PostgresEventLog) LatestSequences(ctx context.Context) (map[string]int64, error) {
	ctx, end := database.TraceQuery(ctx, "LatestRatingSequences", "SELECT MAX(sequence) GROUP BY product_id")
	var err error
	defer func() { end(err) }()

	rows, err := l.db.Query(ctx,
		`SELECT product_id, MAX(sequence) FROM rating_events GROUP BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("latest sequences: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]int64)
	for rows.Next() {
		var productID string
		var seq int64
		if err = rows.Scan(&productID, &seq); err != nil {
			return nil, fmt.Errorf("scan latest sequence: %w", err)
		}
		latest[productID] = seq
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest sequences: %w", err)
	}

	return latest, nil
}
