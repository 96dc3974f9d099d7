// Package dispatch executes upstream calls along ordered fallback chains.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ashish-admin/stra-tech-sub002/internal/breaker"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

// Config contains dispatcher settings.
type Config struct {
	FanOutLimit          int   `env:"DISPATCH_FANOUT_LIMIT"        envDefault:"4" validate:"gte=1"`
	DefaultMaxConcurrent int64 `env:"DISPATCH_DEFAULT_CONCURRENCY" envDefault:"5" validate:"gte=1"`
}

// DefaultConfig returns the stock dispatcher settings.
func DefaultConfig() Config {
	return Config{FanOutLimit: 4, DefaultMaxConcurrent: 5}
}

// Breakers gates calls per service.
type Breakers interface {
	Admit(ctx context.Context, service string) (breaker.Permit, bool)
	RecordResult(ctx context.Context, permit breaker.Permit, success bool)
	Release(ctx context.Context, permit breaker.Permit)
}

// Ledger prices and records successful calls.
type Ledger interface {
	Calculate(service string, usage domain.Usage) (float64, error)
	RecordUsage(ctx context.Context, service, operation string, units int, cost float64) error
}

// Task is one independent chain run by FanOut.
type Task struct {
	Chain []domain.ServiceDescriptor
	Query *domain.Query
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithJitter replaces the random source of backoff jitter. It must return
// values in [0,1).
func WithJitter(jitter func() float64) Option {
	return func(d *Dispatcher) {
		d.jitter = jitter
	}
}

// Dispatcher walks fallback chains. Rate limiters and concurrency slots are
// per service and shared by every request.
type Dispatcher struct {
	cfg      Config
	registry domain.AdapterRegistry
	breakers Breakers
	ledger   Ledger
	metrics  *observability.Metrics
	jitter   func() float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	slots    map[string]*semaphore.Weighted
}

// New creates a dispatcher.
func New(
	cfg Config,
	registry domain.AdapterRegistry,
	breakers Breakers,
	ledger Ledger,
	metrics *observability.Metrics,
	opts ...Option,
) *Dispatcher {
	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = DefaultConfig().FanOutLimit
	}
	if cfg.DefaultMaxConcurrent <= 0 {
		cfg.DefaultMaxConcurrent = DefaultConfig().DefaultMaxConcurrent
	}

	d := &Dispatcher{
		cfg:      cfg,
		registry: registry,
		breakers: breakers,
		ledger:   ledger,
		metrics:  metrics,
		jitter:   rand.Float64,
		limiters: make(map[string]*rate.Limiter),
		slots:    make(map[string]*semaphore.Weighted),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Reserve returns a context whose deadline ends d before the deadline of
// ctx, leaving d for whatever runs afterwards. Without a deadline on ctx it
// only inherits cancellation.
func Reserve(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-d))
}

// Execute tries each service of chain in order and returns the first
// success. It never returns nil: an exhausted chain yields a failure result
// wrapping ErrAllServicesExhausted, and caller cancellation yields a failure
// result wrapping the context error.
//
// When ctx carries a deadline, every step but the last runs under a deadline
// that keeps the worst-case duration of the last step free, so the final
// fallback is always attempted.
func (d *Dispatcher) Execute(ctx context.Context, chain []domain.ServiceDescriptor, q *domain.Query) *domain.Result {
	started := time.Now()
	steps := make([]domain.Step, 0, len(chain))
	var lastErr error

	for i, desc := range chain {
		if err := ctx.Err(); err != nil {
			return failure(steps, err, started)
		}

		stepCtx, cancel := ctx, context.CancelFunc(func() {})
		if i < len(chain)-1 {
			stepCtx, cancel = Reserve(ctx, chain[len(chain)-1].MaxDuration())
		}
		result, step, err := d.step(ctx, stepCtx, desc, q)
		cancel()
		steps = append(steps, step)

		if err == nil {
			result.ChainPosition = i + 1
			result.Attempts = step.Attempts
			result.Steps = steps
			return result
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return failure(steps, ctxErr, started)
		}
		lastErr = err
	}

	err := domain.ErrAllServicesExhausted
	if lastErr != nil {
		err = fmt.Errorf("%w: last error: %w", domain.ErrAllServicesExhausted, lastErr)
	}
	return failure(steps, err, started)
}

// FanOut runs independent tasks concurrently, at most FanOutLimit at a
// time. One failing task never cancels its siblings. Results keep the order
// of tasks.
func (d *Dispatcher) FanOut(ctx context.Context, tasks []Task) []*domain.Result {
	results := make([]*domain.Result, len(tasks))

	var g errgroup.Group
	g.SetLimit(d.cfg.FanOutLimit)

	for i, task := range tasks {
		g.Go(func() error {
			results[i] = d.Execute(ctx, task.Chain, task.Query)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// step runs one chain position. ctx is the caller's context and stepCtx
// bounds this step alone. Every admitted step ends in exactly one
// RecordResult, or a Release when no outcome was observed. Running out of
// step time after reaching the upstream counts as a failure.
func (d *Dispatcher) step(
	ctx context.Context,
	stepCtx context.Context,
	desc domain.ServiceDescriptor,
	q *domain.Query,
) (*domain.Result, domain.Step, error) {
	ctx = observability.WithService(ctx, desc.Name)
	ctx, span := observability.Tracer().Start(ctx, "dispatch.step",
		trace.WithAttributes(attribute.String("service", desc.Name)))
	defer span.End()
	stepCtx = trace.ContextWithSpan(observability.WithService(stepCtx, desc.Name), span)

	logger := observability.FromContext(ctx)
	started := time.Now()
	step := domain.Step{Service: desc.Name}

	finish := func(outcome string, err error) {
		step.Outcome = outcome
		step.Elapsed = time.Since(started)
		if err != nil {
			step.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("outcome", outcome), attribute.Int("attempts", step.Attempts))
	}

	adapter, err := d.registry.Get(ctx, desc.Name)
	if err != nil {
		finish(domain.OutcomeFailed, err)
		logger.Error("no adapter for service in chain", zap.Error(err))
		return nil, step, err
	}

	if err := stepCtx.Err(); err != nil && ctx.Err() == nil {
		err = fmt.Errorf("%s: no time left before the final fallback: %w", desc.Name, err)
		finish(domain.OutcomeSkipped, err)
		logger.Warn("service skipped, chain deadline reserved for fallback")
		return nil, step, err
	}

	permit, ok := d.breakers.Admit(ctx, desc.Name)
	if !ok {
		err := fmt.Errorf("%s: %w", desc.Name, domain.ErrUpstreamRejected)
		finish(domain.OutcomeRejected, err)
		d.metrics.RecordUpstreamCall(desc.Name, domain.OutcomeRejected, 0)
		logger.Info("service skipped, circuit open")
		return nil, step, err
	}

	result, calls, err := d.attempts(stepCtx, desc, adapter, q, &step)

	switch {
	case err == nil:
		d.breakers.RecordResult(ctx, permit, true)
		finish(domain.OutcomeSuccess, nil)
		return result, step, nil
	case ctx.Err() != nil:
		d.breakers.Release(ctx, permit)
		finish(domain.OutcomeCancelled, err)
		return nil, step, err
	case calls == 0:
		// Throttled before reaching the upstream; says nothing about its health.
		d.breakers.Release(ctx, permit)
		finish(domain.OutcomeFailed, err)
		logger.Warn("service call not attempted", zap.Error(err))
		return nil, step, err
	default:
		d.breakers.RecordResult(ctx, permit, false)
		finish(domain.OutcomeFailed, err)
		logger.Warn("service failed",
			zap.Int("attempts", step.Attempts),
			zap.Bool("step_deadline", stepCtx.Err() != nil),
			zap.Error(err))
		return nil, step, err
	}
}

// attempts calls the adapter up to 1+MaxRetries times, retrying retryable
// errors only. It returns the number of upstream calls actually made.
func (d *Dispatcher) attempts(
	ctx context.Context,
	desc domain.ServiceDescriptor,
	adapter domain.Adapter,
	q *domain.Query,
	step *domain.Step,
) (*domain.Result, int, error) {
	limiter, slots := d.resources(desc)
	calls := 0
	var lastErr error

	for attempt := 0; attempt <= desc.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := d.backoff(desc.Retry, attempt-1)
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
				break
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, calls, err
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, calls, fmt.Errorf("%s rate limit: %w", desc.Name, err)
		}
		if err := slots.Acquire(ctx, 1); err != nil {
			return nil, calls, fmt.Errorf("%s concurrency slot: %w", desc.Name, err)
		}

		calls++
		step.Attempts = calls
		callStarted := time.Now()
		result, err := adapter.Execute(ctx, q, desc.Timeout)
		slots.Release(1)
		elapsed := time.Since(callStarted)

		if err == nil && result == nil {
			err = domain.NewUpstreamError(desc.Name, 0, errors.New("adapter returned no result"))
		}
		if err == nil {
			d.metrics.RecordUpstreamCall(desc.Name, domain.OutcomeSuccess, elapsed)
			d.charge(ctx, desc, result)
			return result, calls, nil
		}

		lastErr = err
		d.metrics.RecordUpstreamCall(desc.Name, outcomeOf(err), elapsed)

		if ctx.Err() != nil || !domain.IsRetryable(err) {
			break
		}
		observability.FromContext(ctx).Debug("retrying service call",
			zap.Int("attempt", calls),
			zap.Error(err))
	}

	return nil, calls, lastErr
}

// charge prices a successful call and records it. The spend already
// happened, so the write is not tied to the caller's cancellation.
func (d *Dispatcher) charge(ctx context.Context, desc domain.ServiceDescriptor, result *domain.Result) {
	logger := observability.FromContext(ctx)

	cost, err := d.ledger.Calculate(desc.Name, result.Usage)
	if err != nil {
		logger.Error("failed to price service call", zap.Error(err))
		return
	}
	result.Usage.Cost = cost

	units := result.Usage.TotalTokens
	if units == 0 {
		units = 1
	}
	if err := d.ledger.RecordUsage(context.WithoutCancel(ctx), desc.Name, operationOf(desc.Kind), units, cost); err != nil {
		logger.Error("failed to record usage", zap.Error(err), zap.Float64("cost", cost))
	}
}

func (d *Dispatcher) resources(desc domain.ServiceDescriptor) (*rate.Limiter, *semaphore.Weighted) {
	d.mu.Lock()
	defer d.mu.Unlock()

	limiter, ok := d.limiters[desc.Name]
	if !ok {
		limit := rate.Inf
		if desc.RateLimit > 0 {
			limit = rate.Limit(desc.RateLimit)
		}
		limiter = rate.NewLimiter(limit, max(desc.Burst, 1))
		d.limiters[desc.Name] = limiter
	}

	slots, ok := d.slots[desc.Name]
	if !ok {
		capacity := d.cfg.DefaultMaxConcurrent
		if desc.MaxConcurrent > 0 {
			capacity = int64(desc.MaxConcurrent)
		}
		slots = semaphore.NewWeighted(capacity)
		d.slots[desc.Name] = slots
	}

	return limiter, slots
}

// backoff is exponential with ±25% jitter, capped at MaxDelay.
func (d *Dispatcher) backoff(policy domain.RetryPolicy, retry int) time.Duration {
	retry = min(max(retry, 0), 30)
	delay := time.Duration(float64(policy.BaseDelay) * float64(int64(1)<<retry))

	jitter := time.Duration(d.jitter() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func failure(steps []domain.Step, err error, started time.Time) *domain.Result {
	return &domain.Result{
		Status:  domain.StatusFailure,
		Steps:   steps,
		Elapsed: time.Since(started),
		Error:   err.Error(),
		Err:     err,
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return domain.OutcomeCancelled
	default:
		return domain.OutcomeFailed
	}
}

func operationOf(kind domain.ServiceKind) string {
	switch kind {
	case domain.KindRetrieval:
		return "search"
	case domain.KindEmbedding:
		return "embed"
	default:
		return "analyze"
	}
}
