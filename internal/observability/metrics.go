package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "strategist"

// Metrics holds the Prometheus collectors of the engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	breakerState      *prometheus.GaugeVec
	breakerTrips      *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	cacheAvoidedCost  prometheus.Counter
	spend             *prometheus.CounterVec
	budgetUtilization prometheus.Gauge
	upstreamCalls     *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	routeTransitions  *prometheus.CounterVec
	routeDuration     *prometheus.HistogramVec
	events            *prometheus.CounterVec
	streamSubscribers prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per service (0 closed, 1 open, 2 half-open).",
		}, []string{"service"}),
		breakerTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "breaker_trips_total",
			Help:      "Number of times a service breaker opened.",
		}, []string{"service"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by outcome.",
		}, []string{"outcome"}),
		cacheAvoidedCost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_avoided_cost_usd_total",
			Help:      "Upstream spend avoided by cache hits.",
		}),
		spend: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "spend_usd_total",
			Help:      "Recorded upstream spend per service.",
		}, []string{"service"}),
		budgetUtilization: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "budget_utilization_ratio",
			Help:      "Fraction of the monthly budget consumed.",
		}),
		upstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_calls_total",
			Help:      "Upstream adapter calls by service and outcome.",
		}, []string{"service", "outcome"}),
		upstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_call_duration_seconds",
			Help:      "Latency of upstream adapter calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"service"}),
		routeTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "route_transitions_total",
			Help:      "Router state machine transitions by target state.",
		}, []string{"state"}),
		routeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "route_duration_seconds",
			Help:      "End-to-end analysis duration by terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"state"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "telemetry_events_total",
			Help:      "Structured telemetry events by type.",
		}, []string{"event"}),
		streamSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stream_subscribers",
			Help:      "Currently attached stream subscribers.",
		}),
	}
}

// RecordBreakerState sets the breaker gauge of a service.
func (m *Metrics) RecordBreakerState(service string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(service).Set(float64(state))
}

// RecordBreakerTrip counts a breaker opening.
func (m *Metrics) RecordBreakerTrip(service string) {
	if m == nil {
		return
	}
	m.breakerTrips.WithLabelValues(service).Inc()
}

// RecordCacheLookup counts a lookup outcome: exact, fuzzy, miss or error.
func (m *Metrics) RecordCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// RecordAvoidedCost adds spend saved by a cache hit.
func (m *Metrics) RecordAvoidedCost(cost float64) {
	if m == nil || cost <= 0 {
		return
	}
	m.cacheAvoidedCost.Add(cost)
}

// RecordSpend adds billed cost for a service.
func (m *Metrics) RecordSpend(service string, cost float64) {
	if m == nil || cost <= 0 {
		return
	}
	m.spend.WithLabelValues(service).Add(cost)
}

// RecordUtilization sets the budget utilization gauge.
func (m *Metrics) RecordUtilization(utilization float64) {
	if m == nil {
		return
	}
	m.budgetUtilization.Set(utilization)
}

// RecordUpstreamCall counts an adapter call and observes its latency.
func (m *Metrics) RecordUpstreamCall(service, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(service, outcome).Inc()
	m.upstreamLatency.WithLabelValues(service).Observe(elapsed.Seconds())
}

// RecordTransition counts a router state transition.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.routeTransitions.WithLabelValues(state).Inc()
}

// RecordRoute observes the duration of a finished analysis.
func (m *Metrics) RecordRoute(state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.routeDuration.WithLabelValues(state).Observe(elapsed.Seconds())
}

// CountEvent counts a telemetry event.
func (m *Metrics) CountEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// AddSubscribers adjusts the attached subscriber gauge.
func (m *Metrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.streamSubscribers.Add(float64(delta))
}
