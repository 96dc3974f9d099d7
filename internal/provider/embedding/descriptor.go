package embedding

import (
	"time"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

// text-embedding-3-small pricing per 1K tokens.
const inputCostPer1K = 0.00002

// Descriptor returns the default catalog entry of the embedding service.
func Descriptor(model string) domain.ServiceDescriptor {
	return domain.ServiceDescriptor{
		Name:  ServiceName,
		Kind:  domain.KindEmbedding,
		Model: model,
		Cost: domain.CostModel{
			InputPer1K: inputCostPer1K,
		},
		RateLimit:     10,
		Burst:         20,
		MaxConcurrent: 8,
		Timeout:       10 * time.Second,
		Retry: domain.RetryPolicy{
			MaxRetries: 1,
			BaseDelay:  200 * time.Millisecond,
			MaxDelay:   time.Second,
		},
		Complexity: domain.ComplexityRange{Min: 0, Max: 1},
	}
}
