// Package registry maps service names to their adapters.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

// Registry implements the AdapterRegistry interface.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]domain.Adapter
}

// NewRegistry creates a new adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:       sync.RWMutex{},
		adapters: make(map[string]domain.Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(_ context.Context, adapter domain.Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	name := adapter.Name()
	if name == "" {
		return errors.New("adapter name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}

	r.adapters[name] = adapter
	return nil
}

// Get retrieves an adapter by service name.
func (r *Registry) Get(_ context.Context, name string) (domain.Adapter, error) {
	if name == "" {
		return nil, errors.New("service name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[name]
	if !exists {
		return nil, fmt.Errorf("%w: no adapter for %s", domain.ErrUnknownService, name)
	}

	return adapter, nil
}

// List returns all registered service names in sorted order.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Verify reports services of the catalog that have no adapter.
func (r *Registry) Verify(ctx context.Context, catalog domain.ServiceCatalog) error {
	var missing []string
	for _, desc := range catalog.All() {
		if _, err := r.Get(ctx, desc.Name); err != nil {
			missing = append(missing, desc.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: no adapter registered for %v", domain.ErrUnknownService, missing)
	}
	return nil
}
