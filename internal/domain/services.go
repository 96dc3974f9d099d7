package domain

import "time"

// ServiceKind identifies one of the upstream service variants.
type ServiceKind string

const (
	KindReasoning ServiceKind = "reasoning"
	KindRetrieval ServiceKind = "retrieval"
	KindEmbedding ServiceKind = "embedding"
	KindLocal     ServiceKind = "local"
)

// RetryPolicy bounds retries of a single chain step.
type RetryPolicy struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries" toml:"max_retries" validate:"gte=0,lte=5"`
	BaseDelay  time.Duration `json:"base_delay"  yaml:"base_delay"  toml:"base_delay"  validate:"gte=0"`
	MaxDelay   time.Duration `json:"max_delay"   yaml:"max_delay"   toml:"max_delay"   validate:"gtefield=BaseDelay"`
}

// ComplexityRange is the span of complexity scores a service is suited for.
type ComplexityRange struct {
	Min float64 `json:"min" yaml:"min" toml:"min" validate:"gte=0,lte=1"`
	Max float64 `json:"max" yaml:"max" toml:"max" validate:"gte=0,lte=1,gtefield=Min"`
}

// Contains reports whether score lies inside the range.
func (r ComplexityRange) Contains(score float64) bool {
	return score >= r.Min && score <= r.Max
}

// BreakerPolicy configures the circuit breaker of one service.
type BreakerPolicy struct {
	Threshold   int           `json:"threshold"    yaml:"threshold"    toml:"threshold"    validate:"gte=0"`
	Cooldown    time.Duration `json:"cooldown"     yaml:"cooldown"     toml:"cooldown"     validate:"gte=0"`
	MaxCooldown time.Duration `json:"max_cooldown" yaml:"max_cooldown" toml:"max_cooldown" validate:"gte=0"`
}

// ServiceDescriptor is the static configuration of one upstream service.
type ServiceDescriptor struct {
	Name          string          `json:"name"           yaml:"name"           toml:"name"           validate:"required"`
	Kind          ServiceKind     `json:"kind"           yaml:"kind"           toml:"kind"           validate:"required,oneof=reasoning retrieval embedding local"`
	Model         string          `json:"model"          yaml:"model"          toml:"model"`
	Cost          CostModel       `json:"cost"           yaml:"cost"           toml:"cost"`
	RateLimit     float64         `json:"rate_limit"     yaml:"rate_limit"     toml:"rate_limit"     validate:"gte=0"`
	Burst         int             `json:"burst"          yaml:"burst"          toml:"burst"          validate:"gte=0"`
	MaxConcurrent int             `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent" validate:"gte=0"`
	Timeout       time.Duration   `json:"timeout"        yaml:"timeout"        toml:"timeout"        validate:"gt=0"`
	Retry         RetryPolicy     `json:"retry"          yaml:"retry"          toml:"retry"`
	Complexity    ComplexityRange `json:"complexity"     yaml:"complexity"     toml:"complexity"`
	Breaker       BreakerPolicy   `json:"breaker"        yaml:"breaker"        toml:"breaker"`
}

// MaxDuration returns the worst-case time spent on this service by one chain step.
func (d ServiceDescriptor) MaxDuration() time.Duration {
	attempts := time.Duration(d.Retry.MaxRetries + 1)
	return d.Timeout*attempts + d.Retry.MaxDelay*time.Duration(d.Retry.MaxRetries)
}
