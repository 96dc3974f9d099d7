package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/breaker"
	"github.com/ashish-admin/stra-tech-sub002/internal/cache"
	cachememory "github.com/ashish-admin/stra-tech-sub002/internal/cache/memory"
	cacheredis "github.com/ashish-admin/stra-tech-sub002/internal/cache/redis"
	"github.com/ashish-admin/stra-tech-sub002/internal/config"
	"github.com/ashish-admin/stra-tech-sub002/internal/dispatch"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/embedding/openai"
	httpapi "github.com/ashish-admin/stra-tech-sub002/internal/http"
	"github.com/ashish-admin/stra-tech-sub002/internal/http/middleware"
	"github.com/ashish-admin/stra-tech-sub002/internal/ledger"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/echo"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/embedding"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/local"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/reasoning"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/registry"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/retrieval"
	"github.com/ashish-admin/stra-tech-sub002/internal/routing"
	"github.com/ashish-admin/stra-tech-sub002/internal/store/sqlite"
	"github.com/ashish-admin/stra-tech-sub002/internal/stream"
)

// ErrServiceNotConfigured marks an upstream service whose credentials are missing.
var ErrServiceNotConfigured = errors.New("service not configured")

// Services is the adapter set built from configuration, with the catalog
// narrowed to the services that could be constructed.
type Services struct {
	dig.Out

	Catalog  *domain.InMemoryCatalog
	Registry *registry.Registry
	Memory   *embedding.Adapter
}

// BuildContainer wires every engine component around cfg.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		config.ParseDependenciesConfig,
		observability.InitLogger,
		newMetricsRegistry,
		func(reg *prometheus.Registry) *observability.Metrics { return observability.NewMetrics(reg) },
		observability.NewEventBus,
		func(c *domain.ClassifierConfig) *domain.Classifier { return domain.NewClassifier(*c) },
		func(c *sqlite.Config) (*sqlite.Store, error) { return sqlite.Open(c.Path) },
		newRedisClient,
		newCacheStore,
		newEmbeddingGenerator,
		newAnalysisMemory,
		newServices,
		newLedger,
		newBreakerBank,
		func(c *cache.Config, store domain.CacheStore, classifier *domain.Classifier, l *ledger.Ledger, m *observability.Metrics) *cache.Service {
			return cache.NewService(*c, store, classifier, l, m)
		},
		func(c *dispatch.Config, reg *registry.Registry, bank *breaker.Bank, l *ledger.Ledger, m *observability.Metrics) *dispatch.Dispatcher {
			return dispatch.New(*c, reg, bank, l, m)
		},
		func(c *stream.Config, m *observability.Metrics) *stream.Hub { return stream.NewHub(*c, m) },
		newRouter,
		func(router *routing.Router, hub *stream.Hub, l *ledger.Ledger, bank *breaker.Bank, reg *prometheus.Registry) *httpapi.Handler {
			return httpapi.NewHandler(router, hub, l, bank, reg)
		},
		middleware.BuildMiddlewareChain,
		httpapi.NewServer,
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, fmt.Errorf("providing %T: %w", provider, err)
		}
	}

	return container, nil
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newRedisClient returns nil when the cache runs in memory.
func newRedisClient(cacheCfg *cache.Config, redisCfg *cacheredis.Config) (*goredis.Client, error) {
	if cacheCfg.Backend != "redis" {
		return nil, nil
	}
	return cacheredis.NewClient(context.Background(), *redisCfg)
}

func newCacheStore(cacheCfg *cache.Config, redisCfg *cacheredis.Config, client *goredis.Client) domain.CacheStore {
	if client == nil {
		return cachememory.NewStore()
	}
	return cacheredis.NewStore(client, redisCfg.KeyPrefix, cacheCfg.MaxTTL)
}

// newEmbeddingGenerator returns nil without an API key; the embedding
// service is then left out of the catalog.
func newEmbeddingGenerator(cfg *openai.Config) *openai.Generator {
	if cfg.APIKey == "" {
		return nil
	}
	generator, err := openai.NewGenerator(*cfg)
	if err != nil {
		observability.FromContext(context.Background()).Warn("embedding generator unavailable", zap.Error(err))
		return nil
	}
	return generator
}

// newAnalysisMemory keeps analysis embeddings in RediSearch when Redis is
// available, in process otherwise.
func newAnalysisMemory(
	redisCfg *cacheredis.Config,
	client *goredis.Client,
	generator *openai.Generator,
) (domain.SimilaritySearch, error) {
	if generator == nil {
		return nil, nil
	}
	if client == nil || !redisCfg.AnalysisMemory {
		return cachememory.NewVectorIndex(), nil
	}
	return cacheredis.NewVectorSearch(
		context.Background(), client, redisCfg.AnalysisIndex, redisCfg.KeyPrefix, generator.Dimension())
}

// newServices builds an adapter for every catalog entry it knows how to
// serve. Entries without an adapter are dropped from the catalog with a
// warning; the local fallback is mandatory.
func newServices(
	cfg *config.Config,
	generator *openai.Generator,
	memory domain.SimilaritySearch,
) (Services, error) {
	ctx := context.Background()
	logger := observability.FromContext(ctx)

	full, err := config.LoadCatalog(cfg)
	if err != nil {
		return Services{}, err
	}

	adapters := map[string]func() (domain.Adapter, error){
		reasoning.ServiceName: func() (domain.Adapter, error) {
			if cfg.Reasoning.APIKey == "" {
				return nil, ErrServiceNotConfigured
			}
			return reasoning.NewAdapter(cfg.Reasoning)
		},
		retrieval.ServiceName: func() (domain.Adapter, error) {
			if cfg.Retrieval.APIKey == "" {
				return nil, ErrServiceNotConfigured
			}
			return retrieval.NewAdapter(cfg.Retrieval)
		},
		embedding.ServiceName: func() (domain.Adapter, error) {
			if generator == nil {
				return nil, ErrServiceNotConfigured
			}
			return embedding.NewAdapter(cfg.Memory, generator, memory)
		},
		local.ServiceName: func() (domain.Adapter, error) {
			if cfg.Local.Backend == "echo" {
				return echo.NewAdapter(echo.WithName(local.ServiceName)), nil
			}
			return local.NewAdapter(cfg.Local)
		},
	}

	reg := registry.NewRegistry()
	var memoryAdapter *embedding.Adapter
	var kept []domain.ServiceDescriptor

	for _, desc := range full.All() {
		build, known := adapters[desc.Name]
		if !known {
			logger.Warn("no adapter for catalog service, skipping", zap.String("service", desc.Name))
			continue
		}

		adapter, err := build()
		if err != nil {
			if desc.Kind == domain.KindLocal {
				return Services{}, fmt.Errorf("local fallback service: %w", err)
			}
			logger.Warn("service unavailable, skipping",
				zap.String("service", desc.Name),
				zap.Error(err))
			continue
		}

		if err := reg.Register(ctx, adapter); err != nil {
			return Services{}, err
		}
		if m, ok := adapter.(*embedding.Adapter); ok {
			memoryAdapter = m
		}
		kept = append(kept, desc)
	}

	catalog, err := domain.NewInMemoryCatalog(kept...)
	if err != nil {
		return Services{}, err
	}
	if err := reg.Verify(ctx, catalog); err != nil {
		return Services{}, err
	}

	names := make([]string, 0, len(kept))
	for _, desc := range kept {
		names = append(names, desc.Name)
	}
	logger.Info("services registered", zap.Strings("services", names))

	return Services{Catalog: catalog, Registry: reg, Memory: memoryAdapter}, nil
}

func newLedger(
	cfg *ledger.Config,
	store *sqlite.Store,
	catalog *domain.InMemoryCatalog,
	metrics *observability.Metrics,
	bus *observability.EventBus,
) *ledger.Ledger {
	l := ledger.NewLedger(*cfg, store, catalog, domain.NewStandardCostCalculator(), metrics)
	l.OnThreshold(func(ctx context.Context, previous, current domain.Threshold, remediation domain.Remediation) {
		bus.Publish(ctx, "budget.threshold", map[string]interface{}{
			"previous":    previous.String(),
			"current":     current.String(),
			"utilization": remediation.Utilization,
			"throttle":    remediation.ThrottleFactor,
		})
	})
	return l
}

func newBreakerBank(cfg *breaker.Config, catalog *domain.InMemoryCatalog, metrics *observability.Metrics) *breaker.Bank {
	bank := breaker.NewBank(*cfg, metrics)
	for _, desc := range catalog.All() {
		bank.Configure(desc.Name, breaker.Config{
			Threshold:   desc.Breaker.Threshold,
			Cooldown:    desc.Breaker.Cooldown,
			MaxCooldown: desc.Breaker.MaxCooldown,
		})
	}
	return bank
}

type routerDeps struct {
	dig.In

	Config     *routing.Config
	Classifier *domain.Classifier
	Catalog    *domain.InMemoryCatalog
	Cache      *cache.Service
	Ledger     *ledger.Ledger
	Dispatcher *dispatch.Dispatcher
	Bank       *breaker.Bank
	Hub        *stream.Hub
	Bus        *observability.EventBus
	Metrics    *observability.Metrics
	Memory     *embedding.Adapter
}

func newRouter(deps routerDeps) (*routing.Router, error) {
	if err := deps.Config.Validate(deps.Catalog); err != nil {
		return nil, err
	}

	var opts []routing.Option
	if deps.Memory != nil {
		opts = append(opts, routing.WithMemory(deps.Memory))
	}

	return routing.NewRouter(
		*deps.Config,
		deps.Classifier,
		deps.Catalog,
		deps.Cache,
		deps.Ledger,
		deps.Dispatcher,
		deps.Bank,
		deps.Hub,
		deps.Bus,
		deps.Metrics,
		opts...,
	), nil
}
