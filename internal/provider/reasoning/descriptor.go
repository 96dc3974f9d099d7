package reasoning

import (
	"time"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

const (
	// Claude Sonnet pricing per 1K tokens.
	inputCostPer1K  = 0.003
	outputCostPer1K = 0.015
)

// Descriptor returns the default catalog entry of the reasoning service.
func Descriptor(cfg Config) domain.ServiceDescriptor {
	return domain.ServiceDescriptor{
		Name:  ServiceName,
		Kind:  domain.KindReasoning,
		Model: cfg.Model,
		Cost: domain.CostModel{
			InputPer1K:  inputCostPer1K,
			OutputPer1K: outputCostPer1K,
		},
		RateLimit:     1,
		Burst:         3,
		MaxConcurrent: 5,
		Timeout:       45 * time.Second,
		Retry: domain.RetryPolicy{
			MaxRetries: 2,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   8 * time.Second,
		},
		Complexity: domain.ComplexityRange{Min: 0.3, Max: 1},
	}
}
