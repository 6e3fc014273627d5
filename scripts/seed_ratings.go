// Package main implements a standalone seed script that populates the
// ratings event log with realistic rating submissions for a set of demo
// products, preserving the per-product gap-free sequence invariant.
//
// Run: go run scripts/seed_ratings.go
//   (from the repo root, or: cd scripts && go run seed_ratings.go)
package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	totalProducts  = 200
	maxRatingsEach = 150
	batchSize      = 500
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// deterministicUUID produces a stable UUID-shaped string from a namespace and
// an integer index so that re-runs always produce the same event IDs (the
// event log deduplicates on event_id, so re-running the script is a no-op).
func deterministicUUID(namespace string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", namespace, index)))
	hex := fmt.Sprintf("%x", h[:16])
	return fmt.Sprintf("%s-%s-4%s-%x%s-%s",
		hex[0:8],
		hex[8:12],
		hex[13:16],
		0x8|(h[8]&0x3),
		hex[17:20],
		hex[20:32],
	)
}

// ratingWeights skews the distribution toward positive ratings, the shape
// real marketplaces see.
var ratingWeights = []struct {
	rating int
	weight float64
}{
	{5, 0.45},
	{4, 0.30},
	{3, 0.12},
	{2, 0.07},
	{1, 0.06},
}

func pickRating(rng *rand.Rand) int {
	r := rng.Float64()
	acc := 0.0
	for _, w := range ratingWeights {
		acc += w.weight
		if r < acc {
			return w.rating
		}
	}
	return 5
}

var reviewSnippets = []string{
	"Exactly as described, very happy with it.",
	"Quality is better than expected for the price.",
	"Arrived quickly, works as advertised.",
	"Decent, but the finish could be better.",
	"Not what I expected from the photos.",
	"Would buy again.",
	"Stopped working after a week.",
	"",
	"",
	"", // most ratings carry no review text
}

type eventRow struct {
	eventID     string
	productID   string
	sequence    int64
	userID      string
	rating      int
	reviewText  string
	submittedAt time.Time
}

func main() {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "ratings")
	pass := getEnv("POSTGRES_PASSWORD", "ratings_secret")
	dbname := getEnv("RATINGS_EVENTS_DB_NAME", "ratings_events_db")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, pass, host, port, dbname)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	start := time.Now()

	var batch []eventRow
	var totalEvents, eventIndex int
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := insertBatch(ctx, pool, batch); err != nil {
			log.Fatalf("insert batch: %v", err)
		}
		totalEvents += len(batch)
		batch = batch[:0]
	}

	for p := 0; p < totalProducts; p++ {
		productID := fmt.Sprintf("demo-product-%04d", p+1)
		ratings := 1 + rng.Intn(maxRatingsEach)

		for seq := 1; seq <= ratings; seq++ {
			eventIndex++
			batch = append(batch, eventRow{
				eventID:     deterministicUUID("ratings-seed", eventIndex),
				productID:   productID,
				sequence:    int64(seq),
				userID:      deterministicUUID("ratings-seed-user", rng.Intn(5000)),
				rating:      pickRating(rng),
				reviewText:  reviewSnippets[rng.Intn(len(reviewSnippets))],
				submittedAt: start.Add(-time.Duration(rng.Intn(90*24)) * time.Hour),
			})
			if len(batch) >= batchSize {
				flush()
			}
		}
	}
	flush()

	log.Printf("seeded %d rating events across %d products in %s",
		totalEvents, totalProducts, time.Since(start).Round(time.Millisecond))
	log.Printf("run a projection rebuild (or wait for reconciliation) to fold them into the read model")
}

func insertBatch(ctx context.Context, pool *pgxpool.Pool, rows []eventRow) error {
	b := &pgx.Batch{}
	for _, r := range rows {
		reviewText := any(r.reviewText)
		if r.reviewText == "" {
			reviewText = nil
		}
		b.Queue(`
			INSERT INTO rating_events (event_id, product_id, sequence, user_id, rating, review_text, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (event_id) DO NOTHING`,
			r.eventID, r.productID, r.sequence, r.userID, r.rating, reviewText, r.submittedAt,
		)
	}
	results := pool.SendBatch(ctx, b)
	defer results.Close()
	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
