// Package history records every successful roll batch per owner.
package history

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sipeed/picodice/pkg/dice"
)

// Record is one entry in an owner's roll history.
type Record struct {
	Batch    dice.Batch
	RolledAt time.Time
}

// Store is an append-only, in-memory roll log keyed by owner.
type Store struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	records map[string][]Record
}

type Option func(*Store)

// WithClock sets the clock used to timestamp records.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:   clockwork.NewRealClock(),
		records: make(map[string][]Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds batch to the end of owner's history.
func (s *Store) Append(owner string, batch dice.Batch) {
	rec := Record{Batch: batch.Clone(), RolledAt: s.clock.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[owner] = append(s.records[owner], rec)
}

// All returns a copy of owner's history, oldest first.
func (s *Store) All(owner string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[owner]
	out := make([]Record, len(recs))
	for i, rec := range recs {
		out[i] = Record{Batch: rec.Batch.Clone(), RolledAt: rec.RolledAt}
	}
	return out
}
