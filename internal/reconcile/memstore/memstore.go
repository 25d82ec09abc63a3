// Package memstore provides an in-memory implementation of reconcile.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/beacon/internal/reconcile"
)

// Store holds reconciliation outcomes in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	outcomes map[string]*reconcile.Outcome // outcome ID -> outcome
	seen     map[string]string             // incident fingerprint -> latest outcome ID
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		outcomes: make(map[string]*reconcile.Outcome),
		seen:     make(map[string]string),
	}
}

// Get retrieves an outcome by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*reconcile.Outcome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[id]
	if !ok {
		return nil, false, nil
	}
	cp := *o
	return &cp, true, nil
}

// GetByFingerprint retrieves the most recently stored outcome for an
// incident fingerprint. Returns a copy.
func (s *Store) GetByFingerprint(_ context.Context, fp string) (*reconcile.Outcome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[fp]
	if !ok {
		return nil, false, nil
	}
	o := s.outcomes[id]
	cp := *o
	return &cp, true, nil
}

// Put stores a copy of the outcome.
func (s *Store) Put(_ context.Context, o *reconcile.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.outcomes[o.ID] = &cp
	s.seen[o.Fingerprint] = o.ID
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]*reconcile.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*reconcile.Outcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		cp := *o
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ProcessedAt.Equal(all[j].ProcessedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].ProcessedAt.After(all[j].ProcessedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
