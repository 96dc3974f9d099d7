package embedding

import "time"

// Config tunes the analysis memory lookups of the embedding service.
type Config struct {
	MemoryThreshold float64       `env:"ANALYSIS_MEMORY_THRESHOLD" envDefault:"0.75" validate:"gte=0,lte=1"`
	MemoryLimit     int           `env:"ANALYSIS_MEMORY_LIMIT"     envDefault:"3"    validate:"gte=0"`
	MemoryTTL       time.Duration `env:"ANALYSIS_MEMORY_TTL"       envDefault:"720h" validate:"gte=0"`
	SummaryLength   int           `env:"ANALYSIS_MEMORY_SUMMARY"   envDefault:"600"  validate:"gt=0"`
}

// DefaultConfig returns the stock memory settings.
func DefaultConfig() Config {
	return Config{
		MemoryThreshold: 0.75,
		MemoryLimit:     3,
		MemoryTTL:       30 * 24 * time.Hour,
		SummaryLength:   600,
	}
}
