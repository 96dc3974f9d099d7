package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/ashish-admin/stra-tech-sub002/internal/breaker"
	"github.com/ashish-admin/stra-tech-sub002/internal/cache"
	"github.com/ashish-admin/stra-tech-sub002/internal/cache/redis"
	"github.com/ashish-admin/stra-tech-sub002/internal/dispatch"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/embedding/openai"
	"github.com/ashish-admin/stra-tech-sub002/internal/ledger"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/embedding"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/local"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/reasoning"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/retrieval"
	"github.com/ashish-admin/stra-tech-sub002/internal/routing"
	"github.com/ashish-admin/stra-tech-sub002/internal/store/sqlite"
	"github.com/ashish-admin/stra-tech-sub002/internal/stream"
)

// Config represents the engine configuration.
type Config struct {
	Log        observability.LogConfig
	Server     ServerConfig
	CORS       CORSConfig
	Catalog    CatalogConfig
	Ledger     ledger.Config
	LedgerDB   sqlite.Config
	Breaker    breaker.Config
	Cache      cache.Config
	Redis      redis.Config
	Classifier domain.ClassifierConfig
	Dispatch   dispatch.Config
	Router     routing.Config
	Stream     stream.Config
	Reasoning  reasoning.Config
	Retrieval  retrieval.Config
	Local      local.Config
	Embedding  openai.Config
	Memory     embedding.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"   validate:"gt=0"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"0"    validate:"gte=0"` // 0 keeps SSE streams open
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Last-Event-ID,X-Caller-Id"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// CatalogConfig points at an optional YAML or TOML file overriding service descriptors.
type CatalogConfig struct {
	Path string `env:"SERVICES_CATALOG_PATH"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out

	Log        *observability.LogConfig
	Server     *ServerConfig
	CORS       *CORSConfig
	Catalog    *CatalogConfig
	Ledger     *ledger.Config
	LedgerDB   *sqlite.Config
	Breaker    *breaker.Config
	Cache      *cache.Config
	Redis      *redis.Config
	Classifier *domain.ClassifierConfig
	Dispatch   *dispatch.Config
	Router     *routing.Config
	Stream     *stream.Config
	Reasoning  *reasoning.Config
	Retrieval  *retrieval.Config
	Local      *local.Config
	Embedding  *openai.Config
	Memory     *embedding.Config
}

// Load loads environment files and parses configuration. Invalid settings
// abort start-up.
func Load() *Config {
	cfg, err := LoadFrom(".env")
	if err != nil {
		panic(err)
	}

	return cfg
}

// LoadFrom loads the given env files, skipping missing ones, and parses the
// configuration. Variables already set in the environment win.
func LoadFrom(files ...string) (*Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	return Parse()
}

// Parse reads and validates the configuration from the environment.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Log:        &cfg.Log,
		Server:     &cfg.Server,
		CORS:       &cfg.CORS,
		Catalog:    &cfg.Catalog,
		Ledger:     &cfg.Ledger,
		LedgerDB:   &cfg.LedgerDB,
		Breaker:    &cfg.Breaker,
		Cache:      &cfg.Cache,
		Redis:      &cfg.Redis,
		Classifier: &cfg.Classifier,
		Dispatch:   &cfg.Dispatch,
		Router:     &cfg.Router,
		Stream:     &cfg.Stream,
		Reasoning:  &cfg.Reasoning,
		Retrieval:  &cfg.Retrieval,
		Local:      &cfg.Local,
		Embedding:  &cfg.Embedding,
		Memory:     &cfg.Memory,
	}
}
