// Package routing drives an analysis request through the orchestration
// state machine.
package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ashish-admin/stra-tech-sub002/internal/dispatch"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

// Config contains router settings.
type Config struct {
	Deadline        time.Duration `env:"ROUTER_DEADLINE"          envDefault:"2m"   validate:"gt=0"`
	MinRetryAfter   time.Duration `env:"ROUTER_MIN_RETRY_AFTER"   envDefault:"30s"  validate:"gt=0"`
	ThrottleRate    float64       `env:"ROUTER_THROTTLE_RATE"     envDefault:"2"    validate:"gt=0"`
	ThrottleBurst   int           `env:"ROUTER_THROTTLE_BURST"    envDefault:"2"    validate:"gte=1"`
	ThrottleMaxWait time.Duration `env:"ROUTER_THROTTLE_MAX_WAIT" envDefault:"20s"  validate:"gt=0"`
	ConfidenceTop   float64       `env:"CONFIDENCE_TOP"           envDefault:"0.95" validate:"gt=0,lte=1"`
	ConfidenceStep  float64       `env:"CONFIDENCE_STEP"          envDefault:"0.15" validate:"gte=0"`
	ConfidenceFloor float64       `env:"CONFIDENCE_FLOOR"         envDefault:"0.35" validate:"gte=0,ltefield=ConfidenceTop"`
	FanOutBonus     float64       `env:"CONFIDENCE_FANOUT_BONUS"  envDefault:"0.03" validate:"gte=0"`
	DegradedCeiling float64       `env:"CONFIDENCE_DEGRADED_MAX"  envDefault:"0.5"  validate:"gt=0,lte=1"`
}

// DefaultConfig returns the stock router settings.
func DefaultConfig() Config {
	return Config{
		Deadline:        2 * time.Minute,
		MinRetryAfter:   30 * time.Second,
		ThrottleRate:    2,
		ThrottleBurst:   2,
		ThrottleMaxWait: 20 * time.Second,
		ConfidenceTop:   0.95,
		ConfidenceStep:  0.15,
		ConfidenceFloor: 0.35,
		FanOutBonus:     0.03,
		DegradedCeiling: 0.5,
	}
}

// Validate checks that Deadline leaves room for the emergency throttle wait
// plus every attempt of the slowest local fallback in the catalog.
func (c Config) Validate(catalog domain.ServiceCatalog) error {
	var fallback domain.ServiceDescriptor
	for _, desc := range catalog.All() {
		if desc.Kind == domain.KindLocal && desc.MaxDuration() > fallback.MaxDuration() {
			fallback = desc
		}
	}
	if fallback.Name == "" {
		return nil
	}

	if need := c.ThrottleMaxWait + fallback.MaxDuration(); c.Deadline < need {
		return fmt.Errorf("router deadline %s is shorter than throttle wait plus %s worst case (%s)",
			c.Deadline, fallback.Name, need)
	}
	return nil
}

const maxConfidence = 0.99

// Cache is the response cache used by CacheCheck and after Synthesis.
type Cache interface {
	Fingerprint(q *domain.Query) string
	Get(ctx context.Context, q *domain.Query) (*domain.CacheHit, error)
	Put(ctx context.Context, q *domain.Query, result *domain.Result, costAvoided float64) error
}

// Budget steers service selection.
type Budget interface {
	Remediation(ctx context.Context) domain.Remediation
	EstimateCost(service string, q *domain.Query) float64
}

// Dispatcher runs fallback chains.
type Dispatcher interface {
	Execute(ctx context.Context, chain []domain.ServiceDescriptor, q *domain.Query) *domain.Result
	FanOut(ctx context.Context, tasks []dispatch.Task) []*domain.Result
}

// Breakers reports when an open service admits calls again.
type Breakers interface {
	RetryAfter(service string) time.Duration
}

// Publisher carries progress events to subscribers.
type Publisher interface {
	Open(requestID string) error
	Publish(requestID string, event domain.Event) (domain.Event, error)
}

// Memory indexes completed analyses for later historical lookups.
type Memory interface {
	Remember(ctx context.Context, key string, q *domain.Query, vector []float64, result *domain.Result) error
}

// Outcome is the terminal state of one analysis.
type Outcome struct {
	RequestID string         `json:"request_id"`
	State     State          `json:"state"`
	Result    *domain.Result `json:"result"`
	Trail     []State        `json:"trail"`
}

// Option customizes a Router.
type Option func(*Router)

// WithMemory enables indexing of completed analyses.
func WithMemory(memory Memory) Option {
	return func(r *Router) {
		r.memory = memory
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// Router orchestrates analyses. It owns no upstream state itself: breakers,
// ledger and cache are injected.
type Router struct {
	cfg        Config
	classifier *domain.Classifier
	catalog    domain.ServiceCatalog
	cache      Cache
	budget     Budget
	dispatcher Dispatcher
	breakers   Breakers
	publisher  Publisher
	events     domain.EventPublisher
	metrics    *observability.Metrics
	memory     Memory
	now        func() time.Time

	flights   singleflight.Group
	throttler *rate.Limiter

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewRouter creates a router.
func NewRouter(
	cfg Config,
	classifier *domain.Classifier,
	catalog domain.ServiceCatalog,
	cache Cache,
	budget Budget,
	dispatcher Dispatcher,
	breakers Breakers,
	publisher Publisher,
	events domain.EventPublisher,
	metrics *observability.Metrics,
	opts ...Option,
) *Router {
	r := &Router{
		cfg:        cfg,
		classifier: classifier,
		catalog:    catalog,
		cache:      cache,
		budget:     budget,
		dispatcher: dispatcher,
		breakers:   breakers,
		publisher:  publisher,
		events:     events,
		metrics:    metrics,
		now:        time.Now,
		throttler:  rate.NewLimiter(rate.Limit(cfg.ThrottleRate), max(cfg.ThrottleBurst, 1)),
		inflight:   make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Route runs one analysis to a terminal state and returns it. Progress is
// published on the request stream as it happens. Only an invalid query is
// reported as an error.
func (r *Router) Route(ctx context.Context, requestID string, q *domain.Query, caller string) (*Outcome, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if requestID == "" {
		requestID = observability.GenerateRequestID()
	}

	ctx = observability.WithRequestID(ctx, requestID)
	if caller != "" {
		ctx = observability.WithCaller(ctx, caller)
	}
	ctx, span := observability.Tracer().Start(ctx, "route",
		trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	x := &run{
		router:    r,
		ctx:       ctx,
		span:      span,
		requestID: requestID,
		started:   r.now(),
	}
	q = q.Normalize(x.started)

	out := r.route(x, q)
	span.SetAttributes(attribute.String("state", string(out.State)))
	return out, nil
}

// Start opens the request stream and runs the analysis in the background.
// The analysis outlives ctx; use Cancel to stop it.
func (r *Router) Start(ctx context.Context, requestID string, q *domain.Query, caller string) error {
	if err := q.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.inflight[requestID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("request %s already running", requestID)
	}
	if err := r.publisher.Open(requestID); err != nil {
		r.mu.Unlock()
		return err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.inflight[requestID] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.forget(requestID)
		defer cancel()

		if _, err := r.Route(runCtx, requestID, q, caller); err != nil {
			observability.FromContext(runCtx).Error("analysis rejected", zap.Error(err))
		}
	}()

	return nil
}

// Cancel stops a running analysis. It reports whether the request was running.
func (r *Router) Cancel(requestID string) bool {
	r.mu.Lock()
	cancel, ok := r.inflight[requestID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Shutdown cancels every running analysis and waits for them to finish.
func (r *Router) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, cancel := range r.inflight {
		cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) forget(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, requestID)
}

func (r *Router) route(x *run, q *domain.Query) *Outcome {
	x.transition(StateCacheCheck)

	if q.ForceRefresh {
		x.progress(10, "cache bypassed: refresh forced")
	} else if out := r.checkCache(x, q); out != nil {
		return out
	}

	if x.ctx.Err() != nil {
		return x.cancelled(nil)
	}

	key := r.cache.Fingerprint(q)
	if q.Critical {
		key += "|critical"
	}
	return r.collapse(x, key, q)
}

// checkCache returns the outcome of a hit, or nil to continue.
func (r *Router) checkCache(x *run, q *domain.Query) *Outcome {
	hit, err := r.cache.Get(x.ctx, q)
	switch {
	case err == nil:
		result := cloneResult(hit.Entry.Result)
		result.FromCache = true
		result.Similarity = hit.Similarity
		result.Usage = domain.Usage{}
		result.Steps = nil
		result.Attempts = 0
		result.Elapsed = r.now().Sub(x.started)
		if !hit.Exact {
			result.Confidence *= hit.Similarity
		}

		r.metrics.RecordAvoidedCost(hit.Entry.CostAvoided)
		r.events.Publish(x.ctx, "cache.hit", map[string]interface{}{
			"request_id":   x.requestID,
			"exact":        hit.Exact,
			"similarity":   hit.Similarity,
			"cost_avoided": hit.Entry.CostAvoided,
		})
		return x.finish(StateComplete, result, "served from cache")
	case errors.Is(err, domain.ErrCacheMiss):
		x.progress(10, "no cached analysis")
	default:
		x.logger().Warn("cache unavailable, treating as miss", zap.Error(err))
		x.progress(10, "cache unavailable")
	}
	return nil
}

// collapse runs the pipeline once per key. Followers adopt the leader's
// outcome unless the leader was cancelled, in which case they run their own.
func (r *Router) collapse(x *run, key string, q *domain.Query) *Outcome {
	ch := r.flights.DoChan(key, func() (interface{}, error) {
		if !x.claimed.CompareAndSwap(false, true) {
			return &Outcome{State: StateCancelled}, nil
		}
		return r.pipeline(x, q), nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-x.ctx.Done():
		if x.claimed.CompareAndSwap(false, true) {
			return x.cancelled(nil)
		}
		// The pipeline owns this run and observes the cancellation itself.
		res = <-ch
	}

	shared, _ := res.Val.(*Outcome)
	if shared != nil && shared.RequestID == x.requestID {
		return shared
	}
	x.claimed.Store(true)

	if shared == nil || shared.State == StateCancelled {
		x.logger().Info("equivalent analysis was cancelled, running independently")
		return r.pipeline(x, q)
	}

	x.progress(50, "joined equivalent in-flight analysis "+shared.RequestID)
	return x.finish(shared.State, cloneResult(shared.Result), "shared with "+shared.RequestID)
}

func (r *Router) pipeline(x *run, q *domain.Query) *Outcome {
	ctx, cancel := context.WithTimeout(x.ctx, r.cfg.Deadline)
	defer cancel()

	x.transition(StateBudgetCheck)
	rem := r.budget.Remediation(ctx)
	x.progress(20, fmt.Sprintf("budget %s at %.0f%%", rem.Threshold, rem.Utilization*100))

	if rem.ThrottleFactor < 1 && !q.Critical {
		if err := r.throttle(ctx, rem.ThrottleFactor); err != nil && x.ctx.Err() == nil {
			x.logger().Warn("emergency throttle wait abandoned", zap.Error(err))
		}
	}
	if x.ctx.Err() != nil {
		return x.cancelled(nil)
	}

	x.transition(StateServiceSelection)
	sel := r.selectChain(q, rem)
	x.span.SetAttributes(
		attribute.Float64("complexity", sel.score),
		attribute.StringSlice("chain", sel.names()),
	)
	x.logger().Info("service chain selected",
		zap.Strings("chain", sel.names()),
		zap.Float64("complexity", sel.score),
		zap.String("bucket", string(sel.bucket)),
		zap.String("threshold", rem.Threshold.String()),
		zap.String("suppressed", sel.suppressed),
		zap.Bool("force_local", sel.forceLocal),
	)
	x.progress(30, "chain: "+strings.Join(sel.names(), " > "))

	if x.ctx.Err() != nil {
		return x.cancelled(nil)
	}

	x.transition(StateDispatch)
	collectCtx, release := ctx, context.CancelFunc(func() {})
	if n := len(sel.chain); n > 0 {
		collectCtx, release = dispatch.Reserve(ctx, sel.chain[n-1].MaxDuration())
	}
	collected, analysisQuery := r.collect(collectCtx, x, q, sel.collectors)
	release()
	if x.ctx.Err() != nil {
		return x.cancelled(nil)
	}

	x.progress(60, "running analysis")
	result := r.dispatcher.Execute(ctx, sel.chain, analysisQuery)
	if !result.Succeeded() {
		if x.ctx.Err() != nil {
			return x.cancelled(result)
		}
		return r.fail(x, sel, result)
	}

	x.transition(StateSynthesis)
	final := r.synthesize(x, result, collected)
	x.progress(90, "synthesized result")

	state := StateComplete
	message := "analysis complete"
	if result.Kind == domain.KindLocal {
		state = StateDegraded
		message = "answered by local fallback only"
	}

	// Spend is already in the ledger; the cache write must not depend on the caller staying.
	storeCtx := context.WithoutCancel(x.ctx)
	if err := r.cache.Put(storeCtx, q, final, final.Usage.Cost); err != nil {
		x.logger().Warn("failed to cache analysis", zap.Error(err))
	}
	if state == StateComplete {
		r.remember(storeCtx, x, q, collected, final)
	}

	return x.finish(state, final, message)
}

// collect fans out the data collection tasks of deep analyses and returns
// the successful sub-results plus the query enriched with their findings.
func (r *Router) collect(
	ctx context.Context,
	x *run,
	q *domain.Query,
	collectors []domain.ServiceDescriptor,
) ([]*domain.Result, *domain.Query) {
	if len(collectors) == 0 {
		return nil, q
	}

	tasks := make([]dispatch.Task, 0, len(collectors))
	for _, desc := range collectors {
		tasks = append(tasks, dispatch.Task{Chain: []domain.ServiceDescriptor{desc}, Query: q})
	}
	x.progress(35, fmt.Sprintf("collecting from %d sources", len(tasks)))

	var collected []*domain.Result
	var notes []string
	for i, result := range r.dispatcher.FanOut(ctx, tasks) {
		if !result.Succeeded() {
			x.logger().Warn("data collection failed",
				zap.String("collector", collectors[i].Name),
				zap.String("error", result.Error))
			continue
		}
		collected = append(collected, result)
		notes = append(notes, fmt.Sprintf("%s findings: %s", result.Kind, result.Payload))
		x.partial(result, 40+20*len(collected)/len(tasks))
	}

	if len(notes) == 0 {
		return nil, q
	}
	return collected, q.WithContext(notes...)
}

func (r *Router) synthesize(x *run, result *domain.Result, collected []*domain.Result) *domain.Result {
	out := cloneResult(result)
	out.Elapsed = r.now().Sub(x.started)

	confidence := r.confidence(result.ChainPosition)
	if len(collected) > 0 {
		confidence += r.cfg.FanOutBonus * float64(len(collected))
	}
	out.Quality = "full"
	out.Status = domain.StatusSuccess
	if result.Kind == domain.KindLocal {
		confidence = math.Min(confidence, r.cfg.DegradedCeiling)
		out.Quality = "fallback"
		out.Status = domain.StatusPartial
	}
	out.Confidence = math.Min(confidence, maxConfidence)

	seen := make(map[string]struct{}, len(out.Sources))
	for _, s := range out.Sources {
		seen[s] = struct{}{}
	}
	for _, sub := range collected {
		out.Usage.PromptTokens += sub.Usage.PromptTokens
		out.Usage.CompletionTokens += sub.Usage.CompletionTokens
		out.Usage.TotalTokens += sub.Usage.TotalTokens
		out.Usage.Cost += sub.Usage.Cost
		out.Steps = append(out.Steps, sub.Steps...)
		for _, s := range sub.Sources {
			if _, dup := seen[s]; !dup {
				seen[s] = struct{}{}
				out.Sources = append(out.Sources, s)
			}
		}
	}
	return out
}

// confidence falls with the chain position that answered.
func (r *Router) confidence(position int) float64 {
	if position < 1 {
		position = 1
	}
	c := r.cfg.ConfidenceTop - r.cfg.ConfidenceStep*float64(position-1)
	return math.Max(c, r.cfg.ConfidenceFloor)
}

func (r *Router) fail(x *run, sel selection, result *domain.Result) *Outcome {
	out := cloneResult(result)
	out.Confidence = 0
	out.Elapsed = r.now().Sub(x.started)
	out.RetryAfter = r.retryAfter(sel.chain)

	x.logger().Error("analysis failed, every service including the local fallback errored",
		zap.Int("severity", 1),
		zap.Strings("chain", sel.names()),
		zap.Duration("retry_after", out.RetryAfter),
		zap.String("error", result.Error),
	)
	r.events.Publish(x.ctx, "route.failed", map[string]interface{}{
		"request_id":  x.requestID,
		"severity":    1,
		"chain":       sel.names(),
		"retry_after": out.RetryAfter.String(),
	})

	return x.finish(StateFailed, out, "all services exhausted")
}

// retryAfter is the soonest any chain service admits calls again, at least MinRetryAfter.
func (r *Router) retryAfter(chain []domain.ServiceDescriptor) time.Duration {
	var soonest time.Duration
	for _, desc := range chain {
		if d := r.breakers.RetryAfter(desc.Name); d > 0 && (soonest == 0 || d < soonest) {
			soonest = d
		}
	}
	return max(soonest, r.cfg.MinRetryAfter)
}

func (r *Router) throttle(ctx context.Context, factor float64) error {
	r.throttler.SetLimit(rate.Limit(r.cfg.ThrottleRate * factor))

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ThrottleMaxWait)
	defer cancel()
	return r.throttler.Wait(ctx)
}

func (r *Router) remember(ctx context.Context, x *run, q *domain.Query, collected []*domain.Result, final *domain.Result) {
	if r.memory == nil {
		return
	}
	for _, sub := range collected {
		if len(sub.Embedding) == 0 {
			continue
		}
		if err := r.memory.Remember(ctx, r.cache.Fingerprint(q), q, sub.Embedding, final); err != nil {
			x.logger().Warn("failed to index analysis", zap.Error(err))
		}
		return
	}
}

// run is the per-request state of the machine. Only one goroutine drives a
// run at a time.
type run struct {
	router    *Router
	ctx       context.Context
	span      trace.Span
	requestID string
	started   time.Time
	state     State
	trail     []State
	claimed   atomic.Bool
}

func (x *run) logger() *zap.Logger {
	return observability.FromContext(observability.WithPhase(x.ctx, string(x.state)))
}

// transition moves the machine and emits telemetry. Non-terminal states
// announce themselves on the stream.
func (x *run) transition(to State) bool {
	r := x.router
	from := x.state

	if !CanTransition(from, to) {
		x.logger().DPanic("rejected state transition", zap.Error(&ErrIllegalTransition{From: from, To: to}))
		return false
	}

	x.state = to
	x.trail = append(x.trail, to)
	elapsed := r.now().Sub(x.started)

	r.metrics.RecordTransition(string(to))
	x.span.AddEvent("transition", trace.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	r.events.Publish(x.ctx, "route.transition", map[string]interface{}{
		"request_id": x.requestID,
		"from":       string(from),
		"to":         string(to),
		"elapsed_ms": elapsed.Milliseconds(),
	})

	if !to.Terminal() {
		x.publish(domain.Event{Type: domain.EventPhaseStarted, Phase: string(to), State: string(to)})
	}
	return true
}

func (x *run) progress(percent int, message string) {
	x.publish(domain.Event{
		Type:    domain.EventPhaseProgress,
		Phase:   string(x.state),
		State:   string(x.state),
		Percent: percent,
		Message: message,
	})
}

func (x *run) partial(result *domain.Result, percent int) {
	x.publish(domain.Event{
		Type:    domain.EventPartialResult,
		Phase:   string(x.state),
		State:   string(x.state),
		Percent: percent,
		Message: string(result.Kind),
		Result:  result,
	})
}

func (x *run) finish(state State, result *domain.Result, message string) *Outcome {
	r := x.router
	x.transition(state)

	eventType := domain.EventFinalResult
	if state == StateFailed || state == StateCancelled {
		eventType = domain.EventError
		x.span.SetStatus(codes.Error, message)
	}
	x.publish(domain.Event{
		Type:    eventType,
		Phase:   string(state),
		State:   string(state),
		Percent: 100,
		Message: message,
		Result:  result,
	})

	elapsed := r.now().Sub(x.started)
	r.metrics.RecordRoute(string(state), elapsed)
	x.logger().Info("analysis finished",
		zap.String("state", string(state)),
		zap.Duration("elapsed", elapsed),
		zap.String("service", result.Service),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("from_cache", result.FromCache),
	)

	return &Outcome{
		RequestID: x.requestID,
		State:     state,
		Result:    result,
		Trail:     append([]State(nil), x.trail...),
	}
}

func (x *run) cancelled(partial *domain.Result) *Outcome {
	err := x.ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	result := &domain.Result{
		Status:  domain.StatusFailure,
		Elapsed: x.router.now().Sub(x.started),
		Error:   err.Error(),
		Err:     err,
	}
	if partial != nil {
		result.Steps = partial.Steps
	}
	return x.finish(StateCancelled, result, "analysis cancelled")
}

func (x *run) publish(event domain.Event) {
	if _, err := x.router.publisher.Publish(x.requestID, event); err != nil {
		x.logger().Debug("stream publish skipped", zap.Error(err))
	}
}

func cloneResult(r *domain.Result) *domain.Result {
	if r == nil {
		return &domain.Result{Status: domain.StatusFailure}
	}
	out := *r
	out.Sources = append([]string(nil), r.Sources...)
	out.Steps = append([]domain.Step(nil), r.Steps...)
	out.Embedding = nil
	return &out
}
