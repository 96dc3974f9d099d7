// Package memory provides an in-process cost store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

// Store implements domain.CostStore in memory.
type Store struct {
	mu      sync.RWMutex
	entries []domain.CostEntry
	ids     map[string]struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		mu:      sync.RWMutex{},
		entries: nil,
		ids:     make(map[string]struct{}),
	}
}

// Append stores one entry.
func (s *Store) Append(_ context.Context, entry domain.CostEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[entry.ID]; exists {
		return fmt.Errorf("cost entry %s already recorded", entry.ID)
	}
	s.ids[entry.ID] = struct{}{}
	s.entries = append(s.entries, entry)
	return nil
}

// SumSince returns per-service spend of entries created at or after since.
func (s *Store) SumSince(_ context.Context, since time.Time) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[string]float64)
	for _, e := range s.entries {
		if !e.CreatedAt.Before(since) {
			sums[e.Service] += e.Cost
		}
	}
	return sums, nil
}

// EntriesSince returns entries created at or after since, oldest first.
func (s *Store) EntriesSince(_ context.Context, since time.Time) ([]domain.CostEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CostEntry
	for _, e := range s.entries {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
