// Package projection folds rating events from the event log into the
// product_rating_stats read model.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/franciscolopezv/rating-domain-services/pkg/errors"
	"github.com/franciscolopezv/rating-domain-services/pkg/eventlog"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/domain"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/repository"
)

var (
	eventsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projection_events_applied_total",
			Help: "Total number of rating events folded into the read model",
		},
	)

	eventsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projection_events_skipped_total",
			Help: "Total number of already-applied rating events skipped by the fold",
		},
	)

	gapReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projection_gap_replays_total",
			Help: "Total number of times a sequence gap triggered a replay from the event log",
		},
	)

	stalledPartitions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "projection_stalled_partitions",
			Help: "Number of products whose projection is stalled behind the event log",
		},
	)

	reconcileRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projection_reconcile_runs_total",
			Help: "Total number of reconciliation sweeps over the event log",
		},
	)
)

// Invalidator drops a product's cached stats after the read model changes.
type Invalidator interface {
	Invalidate(ctx context.Context, productID string) error
}

// Projector maintains the read model. All writes for one product are
// serialized through a per-product mutex, so Kafka redelivery, catch-up
// replays, and reconciliation sweeps can run concurrently without racing.
type Projector struct {
	log   eventlog.EventLog
	store repository.StatsStore
	cache Invalidator
	l     *slog.Logger

	mu        sync.Mutex
	productMu map[string]*sync.Mutex
	stalled   map[string]struct{}
}

// NewProjector creates a projector. cache may be nil when no cache is wired.
func NewProjector(log eventlog.EventLog, store repository.StatsStore, cache Invalidator, logger *slog.Logger) *Projector {
	return &Projector{
		log:       log,
		store:     store,
		cache:     cache,
		l:         logger,
		productMu: make(map[string]*sync.Mutex),
		stalled:   make(map[string]struct{}),
	}
}

func (p *Projector) lockProduct(productID string) func() {
	p.mu.Lock()
	m, ok := p.productMu[productID]
	if !ok {
		m = &sync.Mutex{}
		p.productMu[productID] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (p *Projector) markStalled(productID string) {
	p.mu.Lock()
	p.stalled[productID] = struct{}{}
	stalledPartitions.Set(float64(len(p.stalled)))
	p.mu.Unlock()
}

func (p *Projector) clearStalled(productID string) {
	p.mu.Lock()
	delete(p.stalled, productID)
	stalledPartitions.Set(float64(len(p.stalled)))
	p.mu.Unlock()
}

// StalledProducts returns the products currently stalled behind the log.
func (p *Projector) StalledProducts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.stalled))
	for id := range p.stalled {
		out = append(out, id)
	}
	return out
}

// loadStats fetches the current stats row, returning empty stats when the
// product has none yet.
func (p *Projector) loadStats(ctx context.Context, productID string) (*domain.ProductRatingStats, error) {
	stats, err := p.store.GetStats(ctx, productID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.NewProductRatingStats(productID), nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Apply folds one event into the read model. An already-applied event is a
// no-op. A sequence gap triggers a replay of the missing range from the
// event log, so a single notification can heal an arbitrarily large gap.
func (p *Projector) Apply(ctx context.Context, e *eventlog.Event) error {
	unlock := p.lockProduct(e.ProductID)
	defer unlock()

	stats, err := p.loadStats(ctx, e.ProductID)
	if err != nil {
		return fmt.Errorf("load stats for %s: %w", e.ProductID, err)
	}

	applied, err := stats.Apply(e)
	if errors.Is(err, eventlog.ErrOutOfOrder) {
		gapReplays.Inc()
		p.l.InfoContext(ctx, "sequence gap detected, replaying from event log",
			slog.String("product_id", e.ProductID),
			slog.Int64("have", stats.LastAppliedSequence),
			slog.Int64("got", e.Sequence),
		)
		if err := p.catchUpLocked(ctx, stats); err != nil {
			p.markStalled(e.ProductID)
			return err
		}
		p.clearStalled(e.ProductID)
		return nil
	}
	if err != nil {
		return err
	}
	if !applied {
		eventsSkipped.Inc()
		return nil
	}

	if err := p.saveLocked(ctx, stats); err != nil {
		return err
	}
	eventsApplied.Inc()
	p.clearStalled(e.ProductID)
	return nil
}

// catchUpLocked replays events after the last applied sequence from the log
// and persists the result. The caller must hold the product lock.
func (p *Projector) catchUpLocked(ctx context.Context, stats *domain.ProductRatingStats) error {
	events, err := p.log.ReadFrom(ctx, stats.ProductID, stats.LastAppliedSequence+1, 0)
	if err != nil {
		return fmt.Errorf("read events for %s from %d: %w", stats.ProductID, stats.LastAppliedSequence+1, err)
	}
	if len(events) == 0 {
		return nil
	}

	for i := range events {
		applied, err := stats.Apply(&events[i])
		if err != nil {
			return fmt.Errorf("replay event seq %d for %s: %w", events[i].Sequence, stats.ProductID, err)
		}
		if applied {
			eventsApplied.Inc()
		} else {
			eventsSkipped.Inc()
		}
	}

	return p.saveLocked(ctx, stats)
}

func (p *Projector) saveLocked(ctx context.Context, stats *domain.ProductRatingStats) error {
	if err := p.store.SaveStats(ctx, stats); err != nil {
		return fmt.Errorf("save stats for %s: %w", stats.ProductID, err)
	}
	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, stats.ProductID); err != nil {
			p.l.WarnContext(ctx, "stats cache invalidation failed",
				slog.String("product_id", stats.ProductID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// CatchUp brings one product's stats up to the head of the event log.
func (p *Projector) CatchUp(ctx context.Context, productID string) error {
	unlock := p.lockProduct(productID)
	defer unlock()

	stats, err := p.loadStats(ctx, productID)
	if err != nil {
		return fmt.Errorf("load stats for %s: %w", productID, err)
	}
	if err := p.catchUpLocked(ctx, stats); err != nil {
		p.markStalled(productID)
		return err
	}
	p.clearStalled(productID)
	return nil
}

// Rebuild discards a product's stats and refolds its entire event history.
func (p *Projector) Rebuild(ctx context.Context, productID string) error {
	unlock := p.lockProduct(productID)
	defer unlock()

	if err := p.store.DeleteStats(ctx, productID); err != nil {
		return fmt.Errorf("reset stats for %s: %w", productID, err)
	}

	stats := domain.NewProductRatingStats(productID)
	if err := p.catchUpLocked(ctx, stats); err != nil {
		p.markStalled(productID)
		return err
	}
	p.clearStalled(productID)

	p.l.InfoContext(ctx, "stats rebuilt from event log",
		slog.String("product_id", productID),
		slog.Int64("events", stats.ReviewCount),
	)
	return nil
}

// Reconcile sweeps the event log for products whose stats are behind and
// catches them up. It heals projections after lost notifications.
func (p *Projector) Reconcile(ctx context.Context) error {
	reconcileRuns.Inc()

	latest, err := p.log.LatestSequences(ctx)
	if err != nil {
		return fmt.Errorf("latest sequences: %w", err)
	}

	var errs []error
	for productID, logSeq := range latest {
		stats, err := p.loadStats(ctx, productID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load stats for %s: %w", productID, err))
			continue
		}
		if stats.LastAppliedSequence >= logSeq {
			continue
		}

		p.l.InfoContext(ctx, "reconciling lagging projection",
			slog.String("product_id", productID),
			slog.Int64("have", stats.LastAppliedSequence),
			slog.Int64("log", logSeq),
		)
		if err := p.CatchUp(ctx, productID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunReconciliation runs Reconcile on the given interval until the context
// is canceled.
func (p *Projector) RunReconciliation(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Reconcile(ctx); err != nil {
				p.l.Error("reconciliation sweep error", slog.String("error", err.Error()))
			}
		}
	}
}
