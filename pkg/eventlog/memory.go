package eventlog

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryEventLog is an in-memory EventLog for tests and local development.
// It is safe for concurrent use.
type MemoryEventLog struct {
	mu     sync.RWMutex
	events map[string][]Event       // productID -> events ordered by sequence
	byID   map[uuid.UUID]*seqHandle // eventID -> assigned sequence
}

type seqHandle struct {
	productID string
	sequence  int64
}

// NewMemoryEventLog creates an empty in-memory event log.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{
		events: make(map[string][]Event),
		byID:   make(map[uuid.UUID]*seqHandle),
	}
}

// Append assigns the next sequence for the product and records the event.
func (l *MemoryEventLog) Append(_ context.Context, event *Event) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.byID[event.EventID]; ok {
		return h.sequence, ErrDuplicateEvent
	}

	seq := int64(len(l.events[event.ProductID])) + 1
	stored := *event
	stored.Sequence = seq
	l.events[event.ProductID] = append(l.events[event.ProductID], stored)
	l.byID[event.EventID] = &seqHandle{productID: event.ProductID, sequence: seq}

	event.Sequence = seq
	return seq, nil
}

// ReadFrom returns events for the product with sequence >= fromSeq.
func (l *MemoryEventLog) ReadFrom(_ context.Context, productID string, fromSeq int64, limit int) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, e := range l.events[productID] {
		if e.Sequence >= fromSeq {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// LatestSequence returns the highest sequence for the product, or 0.
func (l *MemoryEventLog) LatestSequence(_ context.Context, productID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.events[productID])), nil
}

// LatestSequences returns the highest sequence for every product.
func (l *MemoryEventLog) LatestSequences(_ context.Context) (map[string]int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	latest := make(map[string]int64, len(l.events))
	for productID, evs := range l.events {
		latest[productID] = int64(len(evs))
	}
	return latest, nil
}
