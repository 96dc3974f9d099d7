package observability

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// EventBus implements the EventPublisher interface on top of the context
// logger and the telemetry counters.
type EventBus struct {
	metrics *Metrics
}

// NewEventBus creates a new event bus.
func NewEventBus(metrics *Metrics) *EventBus {
	return &EventBus{
		metrics: metrics,
	}
}

// Publish publishes an event with the given type and data.
func (e *EventBus) Publish(ctx context.Context, eventType string, data map[string]interface{}) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(data)+1)
	fields = append(fields, zap.String("event", eventType))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, data[k]))
	}

	FromContext(ctx).Info("telemetry event", fields...)
	e.metrics.CountEvent(eventType)
}
