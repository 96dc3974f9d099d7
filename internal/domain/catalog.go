package domain

import (
	"errors"
	"fmt"
	"sync"
)

// InMemoryCatalog stores service descriptors in memory.
type InMemoryCatalog struct {
	mu       sync.RWMutex
	services map[string]ServiceDescriptor
	order    []string
}

// NewInMemoryCatalog creates a catalog holding the given descriptors.
func NewInMemoryCatalog(descs ...ServiceDescriptor) (*InMemoryCatalog, error) {
	c := &InMemoryCatalog{
		mu:       sync.RWMutex{},
		services: make(map[string]ServiceDescriptor),
		order:    nil,
	}

	for _, desc := range descs {
		if err := c.Register(desc); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Get retrieves the descriptor of a service.
func (c *InMemoryCatalog) Get(name string) (ServiceDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	desc, exists := c.services[name]
	if !exists {
		return ServiceDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}

	return desc, nil
}

// Register adds or replaces a service descriptor.
func (c *InMemoryCatalog) Register(desc ServiceDescriptor) error {
	if desc.Name == "" {
		return errors.New("service name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.services[desc.Name]; !exists {
		c.order = append(c.order, desc.Name)
	}
	c.services[desc.Name] = desc
	return nil
}

// All returns every descriptor in registration order.
func (c *InMemoryCatalog) All() []ServiceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ServiceDescriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.services[name])
	}
	return out
}
