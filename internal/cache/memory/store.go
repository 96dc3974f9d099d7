// Package memory provides an in-process cache store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

// Store implements domain.CacheStore with maps guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry
	scopes  map[string]map[string]struct{}
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates an empty store with a custom time source.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		mu:      sync.RWMutex{},
		entries: make(map[string]*domain.CacheEntry),
		scopes:  make(map[string]map[string]struct{}),
		now:     now,
	}
}

// Get returns the live entry stored under fingerprint.
func (s *Store) Get(_ context.Context, fingerprint string) (*domain.CacheEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if entry.Expired(s.now()) {
		s.evict(fingerprint)
		return nil, domain.ErrCacheMiss
	}
	return entry, nil
}

// Set stores entry, replacing any previous value.
func (s *Store) Set(_ context.Context, entry *domain.CacheEntry, ttl time.Duration) error {
	stored := *entry
	stored.ExpiresAt = s.now().Add(ttl)
	if !entry.ExpiresAt.IsZero() && entry.ExpiresAt.Before(stored.ExpiresAt) {
		stored.ExpiresAt = entry.ExpiresAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[stored.Fingerprint] = &stored
	scope := s.scopes[stored.Features.Scope]
	if scope == nil {
		scope = make(map[string]struct{})
		s.scopes[stored.Features.Scope] = scope
	}
	scope[stored.Fingerprint] = struct{}{}
	return nil
}

// Neighbors returns live entries sharing scope.
func (s *Store) Neighbors(_ context.Context, scope string) ([]*domain.CacheEntry, error) {
	now := s.now()

	s.mu.RLock()
	var out []*domain.CacheEntry
	var expired []string
	for fingerprint := range s.scopes[scope] {
		entry := s.entries[fingerprint]
		if entry == nil || entry.Expired(now) {
			expired = append(expired, fingerprint)
			continue
		}
		out = append(out, entry)
	}
	s.mu.RUnlock()

	for _, fingerprint := range expired {
		s.evict(fingerprint)
	}
	return out, nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) evict(fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[fingerprint]
	if ok && !entry.Expired(s.now()) {
		return
	}
	delete(s.entries, fingerprint)
	for _, set := range s.scopes {
		delete(set, fingerprint)
	}
}
