// Package breaker keeps one circuit breaker per upstream service.
package breaker

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

// State represents the current state of a circuit breaker.
type State int

const (
	// StateClosed allows all calls.
	StateClosed State = iota
	// StateOpen rejects all calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits a single trial call.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config configures a breaker.
type Config struct {
	Threshold   int           `env:"BREAKER_THRESHOLD"    envDefault:"3"   validate:"gte=1"`
	Cooldown    time.Duration `env:"BREAKER_COOLDOWN"     envDefault:"30s" validate:"gt=0"`
	MaxCooldown time.Duration `env:"BREAKER_MAX_COOLDOWN" envDefault:"60m" validate:"gtefield=Cooldown"`
}

// Snapshot is a read-only view of a breaker.
type Snapshot struct {
	Service     string        `json:"service"`
	State       State         `json:"state"`
	Failures    int           `json:"failures"`
	Trips       int           `json:"trips"`
	Threshold   int           `json:"threshold"`
	Cooldown    time.Duration `json:"cooldown"`
	LastFailure time.Time     `json:"last_failure,omitempty"`
	OpenUntil   time.Time     `json:"open_until,omitempty"`
}

// Permit identifies one admitted call. Its outcome only counts against the
// breaker state it was admitted under.
type Permit struct {
	Service    string
	generation uint64
}

// Option customizes a Bank.
type Option func(*Bank)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bank) {
		b.now = now
	}
}

// Bank owns the breakers of all services. Each breaker is guarded by its
// own mutex so services never contend with each other.
type Bank struct {
	mu       sync.RWMutex
	breakers map[string]*circuit
	policies map[string]Config
	defaults Config
	metrics  *observability.Metrics
	now      func() time.Time
}

type circuit struct {
	mu            sync.Mutex
	service       string
	cfg           Config
	state         State
	failures      int
	trips         int
	lastFailure   time.Time
	openedAt      time.Time
	trialInFlight bool
	generation    uint64
}

// NewBank creates a breaker bank. Services without an explicit policy use defaults.
func NewBank(defaults Config, metrics *observability.Metrics, opts ...Option) *Bank {
	b := &Bank{
		mu:       sync.RWMutex{},
		breakers: make(map[string]*circuit),
		policies: make(map[string]Config),
		defaults: sanitize(defaults, Config{Threshold: 3, Cooldown: 30 * time.Second, MaxCooldown: time.Hour}),
		metrics:  metrics,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Configure sets the policy of a service. Zero fields fall back to the bank
// defaults. Already created breakers keep their state.
func (b *Bank) Configure(service string, cfg Config) {
	cfg = sanitize(cfg, b.defaults)

	b.mu.Lock()
	b.policies[service] = cfg
	c := b.breakers[service]
	b.mu.Unlock()

	if c != nil {
		c.mu.Lock()
		c.cfg = cfg
		c.mu.Unlock()
	}
}

// Admit reports whether a call to service may proceed. In the half-open
// state only one caller is admitted until its result is recorded.
func (b *Bank) Admit(ctx context.Context, service string) (Permit, bool) {
	c := b.circuit(service)
	now := b.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return c.permit(), true
	case StateOpen:
		if now.Sub(c.openedAt) < c.cooldown() {
			return Permit{}, false
		}
		b.transition(ctx, c, StateHalfOpen, "cooldown elapsed")
		c.trialInFlight = true
		return c.permit(), true
	case StateHalfOpen:
		if c.trialInFlight {
			return Permit{}, false
		}
		// A new trial; outcomes of released trials no longer count.
		c.generation++
		c.trialInFlight = true
		return c.permit(), true
	default:
		return Permit{}, false
	}
}

// RecordResult records the outcome of an admitted call. Outcomes of calls
// admitted under an earlier state, which finished late, only update the
// last failure time.
func (b *Bank) RecordResult(ctx context.Context, permit Permit, success bool) {
	c := b.circuit(permit.Service)
	now := b.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if permit.generation != c.generation {
		if !success {
			c.lastFailure = now
		}
		return
	}

	switch c.state {
	case StateClosed:
		if success {
			c.failures = 0
			return
		}
		c.failures++
		c.lastFailure = now
		if c.failures >= c.cfg.Threshold {
			c.trips++
			c.openedAt = now
			b.transition(ctx, c, StateOpen, "failure threshold reached")
			b.metrics.RecordBreakerTrip(c.service)
		}
	case StateHalfOpen:
		c.trialInFlight = false
		if success {
			c.failures = 0
			c.trips = 0
			b.transition(ctx, c, StateClosed, "trial call succeeded")
			return
		}
		c.failures++
		c.lastFailure = now
		c.trips++
		c.openedAt = now
		b.transition(ctx, c, StateOpen, "trial call failed")
		b.metrics.RecordBreakerTrip(c.service)
	}
}

// Release frees an admitted call that ended without an outcome, such as a
// cancelled request. It never changes the breaker state.
func (b *Bank) Release(_ context.Context, permit Permit) {
	c := b.circuit(permit.Service)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateHalfOpen && permit.generation == c.generation {
		c.trialInFlight = false
	}
}

// RetryAfter returns how long until service admits calls again.
func (b *Bank) RetryAfter(service string) time.Duration {
	c := b.circuit(service)
	now := b.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return 0
	}
	remaining := c.openedAt.Add(c.cooldown()).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns the current view of a service breaker.
func (b *Bank) Snapshot(service string) Snapshot {
	c := b.circuit(service)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshot()
}

// Snapshots returns views of every known breaker sorted by service.
func (b *Bank) Snapshots() []Snapshot {
	b.mu.RLock()
	circuits := make([]*circuit, 0, len(b.breakers))
	for _, c := range b.breakers {
		circuits = append(circuits, c)
	}
	b.mu.RUnlock()

	out := make([]Snapshot, 0, len(circuits))
	for _, c := range circuits {
		c.mu.Lock()
		out = append(out, c.snapshot())
		c.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

func (b *Bank) circuit(service string) *circuit {
	b.mu.RLock()
	c, ok := b.breakers[service]
	b.mu.RUnlock()
	if ok {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok = b.breakers[service]; ok {
		return c
	}

	cfg, ok := b.policies[service]
	if !ok {
		cfg = b.defaults
	}

	c = &circuit{
		mu:      sync.Mutex{},
		service: service,
		cfg:     cfg,
		state:   StateClosed,
	}
	b.breakers[service] = c
	b.metrics.RecordBreakerState(service, int(StateClosed))

	return c
}

// transition must be called with c.mu held.
func (b *Bank) transition(ctx context.Context, c *circuit, next State, reason string) {
	previous := c.state
	c.state = next
	c.generation++

	logger := observability.FromContext(observability.WithService(ctx, c.service))
	fields := []zap.Field{
		zap.String("from", previous.String()),
		zap.String("to", next.String()),
		zap.String("reason", reason),
		zap.Int("consecutive_failures", c.failures),
		zap.Int("trips", c.trips),
	}
	if next == StateOpen {
		fields = append(fields, zap.Duration("cooldown", c.cooldown()))
		logger.Warn("circuit breaker opened", fields...)
	} else {
		logger.Info("circuit breaker transition", fields...)
	}

	b.metrics.RecordBreakerState(c.service, int(next))
}

// cooldown doubles with every consecutive trip and is capped at MaxCooldown.
func (c *circuit) cooldown() time.Duration {
	d := c.cfg.Cooldown
	for i := 1; i < c.trips; i++ {
		d *= 2
		if d >= c.cfg.MaxCooldown {
			return c.cfg.MaxCooldown
		}
	}
	if d > c.cfg.MaxCooldown {
		return c.cfg.MaxCooldown
	}
	return d
}

func (c *circuit) permit() Permit {
	return Permit{Service: c.service, generation: c.generation}
}

func (c *circuit) snapshot() Snapshot {
	s := Snapshot{
		Service:     c.service,
		State:       c.state,
		Failures:    c.failures,
		Trips:       c.trips,
		Threshold:   c.cfg.Threshold,
		Cooldown:    c.cooldown(),
		LastFailure: c.lastFailure,
	}
	if c.state == StateOpen {
		s.OpenUntil = c.openedAt.Add(c.cooldown())
	}
	return s
}

func sanitize(cfg, fallback Config) Config {
	if cfg.Threshold <= 0 {
		cfg.Threshold = fallback.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = fallback.Cooldown
	}
	if cfg.MaxCooldown <= 0 {
		cfg.MaxCooldown = fallback.MaxCooldown
	}
	if cfg.MaxCooldown < cfg.Cooldown {
		cfg.MaxCooldown = cfg.Cooldown
	}
	return cfg
}
