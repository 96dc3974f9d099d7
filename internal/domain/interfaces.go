package domain

import (
	"context"
	"time"
)

// Adapter represents one upstream AI service.
type Adapter interface {
	// Execute runs the query against the service within timeout.
	Execute(ctx context.Context, query *Query, timeout time.Duration) (*Result, error)

	// Name returns the service identifier.
	Name() string

	// Kind returns the service variant.
	Kind() ServiceKind
}

// AdapterRegistry manages available adapters.
type AdapterRegistry interface {
	// Register adds an adapter to the registry.
	Register(ctx context.Context, adapter Adapter) error

	// Get retrieves an adapter by service name.
	Get(ctx context.Context, name string) (Adapter, error)

	// List returns all registered service names.
	List(ctx context.Context) ([]string, error)
}

// CostStore persists CostEntry records.
type CostStore interface {
	// Append stores one entry.
	Append(ctx context.Context, entry CostEntry) error

	// SumSince returns per-service spend of entries created at or after since.
	SumSince(ctx context.Context, since time.Time) (map[string]float64, error)

	// EntriesSince returns entries created at or after since, oldest first.
	EntriesSince(ctx context.Context, since time.Time) ([]CostEntry, error)
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
