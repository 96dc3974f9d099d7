package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection and key layout settings.
type Config struct {
	Addr           string `env:"REDIS_ADDR"            envDefault:"localhost:6379"`
	Password       string `env:"REDIS_PASSWORD"`
	DB             int    `env:"REDIS_DB"              envDefault:"0"`
	KeyPrefix      string `env:"CACHE_KEY_PREFIX"      envDefault:"strategist:"`
	AnalysisIndex  string `env:"ANALYSIS_MEMORY_INDEX" envDefault:"strategist-analyses"`
	AnalysisMemory bool   `env:"ANALYSIS_MEMORY"       envDefault:"true"`
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}
