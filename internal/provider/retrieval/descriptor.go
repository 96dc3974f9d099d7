package retrieval

import (
	"time"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

const (
	// Sonar pricing: request fee plus per 1K tokens.
	requestCost     = 0.005
	inputCostPer1K  = 0.001
	outputCostPer1K = 0.001
)

// Descriptor returns the default catalog entry of the retrieval service.
func Descriptor(cfg Config) domain.ServiceDescriptor {
	return domain.ServiceDescriptor{
		Name:  ServiceName,
		Kind:  domain.KindRetrieval,
		Model: cfg.Model,
		Cost: domain.CostModel{
			PerCall:     requestCost,
			InputPer1K:  inputCostPer1K,
			OutputPer1K: outputCostPer1K,
		},
		RateLimit:     2,
		Burst:         4,
		MaxConcurrent: 4,
		Timeout:       25 * time.Second,
		Retry: domain.RetryPolicy{
			MaxRetries: 2,
			BaseDelay:  250 * time.Millisecond,
			MaxDelay:   4 * time.Second,
		},
		Complexity: domain.ComplexityRange{Min: 0, Max: 1},
	}
}
