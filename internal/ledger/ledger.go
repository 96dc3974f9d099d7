// Package ledger tracks upstream spend against the monthly budget.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

const (
	baseInputTokens     = 400
	inputTokensPerTopic = 60
	inputTokensPerNote  = 250
)

// Config contains budget settings.
type Config struct {
	MonthlyLimit float64       `env:"BUDGET_MONTHLY_LIMIT"      envDefault:"500"  validate:"gt=0"`
	Staleness    time.Duration `env:"LEDGER_SUMMARY_STALENESS"  envDefault:"2m"   validate:"gt=0"`
	WarningAt    float64       `env:"BUDGET_WARNING_THRESHOLD"  envDefault:"0.8"  validate:"gt=0,lt=1"`
	CriticalAt   float64       `env:"BUDGET_CRITICAL_THRESHOLD" envDefault:"0.9"  validate:"gtfield=WarningAt,lt=1"`
	EmergencyAt  float64       `env:"BUDGET_EMERGENCY_THRESHOLD" envDefault:"0.95" validate:"gtfield=CriticalAt,lt=1"`
	MinThrottle  float64       `env:"BUDGET_MIN_THROTTLE"       envDefault:"0.1"  validate:"gt=0,lte=1"`
}

// DefaultConfig returns the stock budget settings.
func DefaultConfig() Config {
	return Config{
		MonthlyLimit: 500,
		Staleness:    2 * time.Minute,
		WarningAt:    0.8,
		CriticalAt:   0.9,
		EmergencyAt:  0.95,
		MinThrottle:  0.1,
	}
}

// ThresholdListener is notified when the budget threshold changes. It runs
// while the ledger is locked and must not call back into the ledger.
type ThresholdListener func(ctx context.Context, previous, current domain.Threshold, remediation domain.Remediation)

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger records cost entries and serves a cached usage summary. Writes are
// serialized by mu; reads use the published snapshot.
type Ledger struct {
	cfg        Config
	store      domain.CostStore
	catalog    domain.ServiceCatalog
	calculator domain.CostCalculator
	metrics    *observability.Metrics
	now        func() time.Time

	mu        sync.Mutex
	listeners []ThresholdListener
	last      domain.Threshold

	snapshot atomic.Pointer[domain.UsageSummary]
}

// NewLedger creates a ledger.
func NewLedger(
	cfg Config,
	store domain.CostStore,
	catalog domain.ServiceCatalog,
	calculator domain.CostCalculator,
	metrics *observability.Metrics,
	opts ...Option,
) *Ledger {
	l := &Ledger{
		cfg:        cfg,
		store:      store,
		catalog:    catalog,
		calculator: calculator,
		metrics:    metrics,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// OnThreshold registers a listener for threshold changes.
func (l *Ledger) OnThreshold(listener ThresholdListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

// EstimateCost returns the expected cost of running query on service.
func (l *Ledger) EstimateCost(service string, query *domain.Query) float64 {
	desc, err := l.catalog.Get(service)
	if err != nil {
		return 0
	}
	return l.calculator.Calculate(desc.Cost, EstimateUsage(desc.Kind, query))
}

// EstimateUsage predicts the token usage of a query on a service kind.
func EstimateUsage(kind domain.ServiceKind, query *domain.Query) domain.Usage {
	input := baseInputTokens + inputTokensPerTopic*len(query.Topics) + inputTokensPerNote*len(query.Context)
	input += len(query.Question) / 4

	var output int
	switch query.Depth {
	case domain.DepthQuick:
		output = 300
	case domain.DepthDeep:
		output = 1600
	default:
		output = 800
	}
	if kind == domain.KindEmbedding {
		output = 0
	}

	return domain.Usage{PromptTokens: input, CompletionTokens: output, TotalTokens: input + output}
}

// Calculate returns the cost of a completed call on service.
func (l *Ledger) Calculate(service string, usage domain.Usage) (float64, error) {
	desc, err := l.catalog.Get(service)
	if err != nil {
		return 0, err
	}
	return l.calculator.Calculate(desc.Cost, usage), nil
}

// RecordUsage appends a cost entry and updates the period aggregate.
func (l *Ledger) RecordUsage(ctx context.Context, service, operation string, units int, cost float64) error {
	if _, err := l.catalog.Get(service); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	if cost < 0 || math.IsNaN(cost) {
		return fmt.Errorf("recording usage: invalid cost %v", cost)
	}

	now := l.now().UTC()
	entry := domain.CostEntry{
		ID:        uuid.NewString(),
		Service:   service,
		Operation: operation,
		Units:     units,
		Cost:      cost,
		RequestID: observability.GetRequestID(ctx),
		CreatedAt: now,
	}

	logger := observability.FromContext(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Append(ctx, entry); err != nil {
		l.markDegradedLocked(ctx, err)
		return fmt.Errorf("recording usage: %w", err)
	}
	l.metrics.RecordSpend(service, cost)

	current := l.snapshot.Load()
	if current == nil || current.Degraded || !current.PeriodStart.Equal(periodStart(now)) {
		// Rebuild from the store, which already contains the new entry. A failed
		// rebuild leaves the summary degraded; the entry itself is stored.
		_, _ = l.refreshLocked(ctx, now)
		return nil
	}

	next := *current
	next.PerService = make(map[string]float64, len(current.PerService)+1)
	for k, v := range current.PerService {
		next.PerService[k] = v
	}
	next.PerService[service] += cost
	next.TotalSpend += cost
	l.publishLocked(ctx, l.derive(next, now))

	logger.Debug("usage recorded",
		zap.String("service", service),
		zap.String("operation", operation),
		zap.Int("units", units),
		zap.Float64("cost", cost),
	)
	return nil
}

// Summary returns the usage summary, refreshing it when stale.
func (l *Ledger) Summary(ctx context.Context) domain.UsageSummary {
	now := l.now().UTC()

	if current := l.snapshot.Load(); current != nil && l.fresh(current, now) {
		return *current
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if current := l.snapshot.Load(); current != nil && l.fresh(current, now) {
		return *current
	}

	summary, err := l.refreshLocked(ctx, now)
	if err != nil {
		return *l.snapshot.Load()
	}
	return summary
}

// Refresh recomputes the summary from the store.
func (l *Ledger) Refresh(ctx context.Context) (domain.UsageSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refreshLocked(ctx, l.now().UTC())
}

// CurrentUtilization returns the fraction of the monthly budget consumed.
// It reports 1 while the store is unreadable.
func (l *Ledger) CurrentUtilization(ctx context.Context) float64 {
	return l.Summary(ctx).Utilization
}

// CheckThreshold returns the current budget pressure level.
func (l *Ledger) CheckThreshold(ctx context.Context) domain.Threshold {
	return l.thresholdFor(l.CurrentUtilization(ctx))
}

// Remediation returns the steering actions for the current threshold.
func (l *Ledger) Remediation(ctx context.Context) domain.Remediation {
	return l.remediationFor(l.CurrentUtilization(ctx))
}

func (l *Ledger) thresholdFor(utilization float64) domain.Threshold {
	switch {
	case utilization >= l.cfg.EmergencyAt:
		return domain.ThresholdEmergency
	case utilization >= l.cfg.CriticalAt:
		return domain.ThresholdCritical
	case utilization >= l.cfg.WarningAt:
		return domain.ThresholdWarning
	default:
		return domain.ThresholdNormal
	}
}

func (l *Ledger) remediationFor(utilization float64) domain.Remediation {
	threshold := l.thresholdFor(utilization)
	r := domain.Remediation{
		Threshold:      threshold,
		Utilization:    utilization,
		ThrottleFactor: 1,
	}

	if threshold >= domain.ThresholdWarning {
		r.PreferCache = true
		r.CheapestFirst = true
	}
	if threshold >= domain.ThresholdCritical {
		r.SuppressMostExpensive = true
	}
	if threshold >= domain.ThresholdEmergency {
		r.ForceLocal = true
		factor := (1 - utilization) / (1 - l.cfg.EmergencyAt)
		r.ThrottleFactor = math.Max(l.cfg.MinThrottle, math.Min(1, factor))
	}

	return r
}

func (l *Ledger) fresh(summary *domain.UsageSummary, now time.Time) bool {
	return !summary.Degraded &&
		summary.PeriodStart.Equal(periodStart(now)) &&
		now.Sub(summary.ComputedAt) < l.cfg.Staleness
}

// refreshLocked must be called with l.mu held.
func (l *Ledger) refreshLocked(ctx context.Context, now time.Time) (domain.UsageSummary, error) {
	start := periodStart(now)

	sums, err := l.store.SumSince(ctx, start)
	if err != nil {
		l.markDegradedLocked(ctx, err)
		return domain.UsageSummary{}, fmt.Errorf("refreshing usage summary: %w", err)
	}

	summary := domain.UsageSummary{
		PeriodStart: start,
		PerService:  sums,
		Limit:       l.cfg.MonthlyLimit,
	}
	for _, v := range sums {
		summary.TotalSpend += v
	}

	summary = l.derive(summary, now)
	l.publishLocked(ctx, summary)
	return summary, nil
}

// markDegradedLocked publishes a worst-case summary. Must hold l.mu.
func (l *Ledger) markDegradedLocked(ctx context.Context, cause error) {
	observability.FromContext(ctx).Error("cost ledger degraded, assuming budget exhausted",
		zap.Error(cause))

	now := l.now().UTC()
	summary := domain.UsageSummary{
		PeriodStart: periodStart(now),
		PerService:  map[string]float64{},
		Limit:       l.cfg.MonthlyLimit,
	}
	if current := l.snapshot.Load(); current != nil {
		summary = *current
	}
	summary.Degraded = true
	summary.Utilization = 1
	summary.ComputedAt = now
	l.publishLocked(ctx, summary)
}

func (l *Ledger) derive(summary domain.UsageSummary, now time.Time) domain.UsageSummary {
	start := periodStart(now)
	days := daysIn(start)

	elapsed := now.Sub(start).Hours() / 24
	summary.DaysElapsed = elapsed
	summary.DaysInPeriod = days
	summary.Limit = l.cfg.MonthlyLimit
	summary.ComputedAt = now
	summary.Degraded = false

	// Projections from the first hours of a month are noise; use at least one day.
	summary.ProjectedSpend = summary.TotalSpend / math.Max(elapsed, 1) * float64(days)
	if l.cfg.MonthlyLimit > 0 {
		summary.Utilization = summary.TotalSpend / l.cfg.MonthlyLimit
	}
	return summary
}

// publishLocked stores the snapshot and fires threshold listeners. Must hold l.mu.
func (l *Ledger) publishLocked(ctx context.Context, summary domain.UsageSummary) {
	l.snapshot.Store(&summary)
	l.metrics.RecordUtilization(summary.Utilization)

	current := l.thresholdFor(summary.Utilization)
	if current == l.last {
		return
	}

	previous := l.last
	l.last = current
	remediation := l.remediationFor(summary.Utilization)

	observability.FromContext(ctx).Warn("budget threshold changed",
		zap.String("from", previous.String()),
		zap.String("to", current.String()),
		zap.Float64("utilization", summary.Utilization),
		zap.Bool("force_local", remediation.ForceLocal),
		zap.Float64("throttle_factor", remediation.ThrottleFactor),
	)

	for _, listener := range l.listeners {
		listener(ctx, previous, current, remediation)
	}
}

// Entries returns the cost entries of the current period.
func (l *Ledger) Entries(ctx context.Context) ([]domain.CostEntry, error) {
	entries, err := l.store.EntriesSince(ctx, periodStart(l.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("listing cost entries: %w", err)
	}
	return entries, nil
}

// ErrDegraded is reported by Verify when the ledger cannot read its store.
var ErrDegraded = errors.New("ledger degraded")

// Verify checks that the cached aggregate equals the sum of stored entries.
func (l *Ledger) Verify(ctx context.Context) error {
	summary := l.Summary(ctx)
	if summary.Degraded {
		return ErrDegraded
	}

	entries, err := l.Entries(ctx)
	if err != nil {
		return err
	}

	var total float64
	for _, e := range entries {
		total += e.Cost
	}
	if math.Abs(total-summary.TotalSpend) > 1e-9 {
		return fmt.Errorf("ledger drift: summary %.6f, entries %.6f", summary.TotalSpend, total)
	}
	return nil
}

func periodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func daysIn(start time.Time) int {
	return start.AddDate(0, 1, -1).Day()
}
