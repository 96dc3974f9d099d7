package local

import (
	"time"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

// Descriptor returns the default catalog entry of the local fallback. It is
// free and never rate limited.
func Descriptor(cfg Config) domain.ServiceDescriptor {
	return domain.ServiceDescriptor{
		Name:          ServiceName,
		Kind:          domain.KindLocal,
		Model:         cfg.Model,
		MaxConcurrent: 2,
		Timeout:       30 * time.Second,
		Retry: domain.RetryPolicy{
			MaxRetries: 1,
			BaseDelay:  time.Second,
			MaxDelay:   2 * time.Second,
		},
		Complexity: domain.ComplexityRange{Min: 0, Max: 1},
	}
}
