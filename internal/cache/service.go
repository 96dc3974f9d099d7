// Package cache implements the fingerprint-keyed response cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

// preferCacheRelaxation lowers the fuzzy threshold while the budget prefers
// cached answers.
const preferCacheRelaxation = 0.05

// Config contains response cache settings.
type Config struct {
	Backend             string        `env:"CACHE_BACKEND"              envDefault:"redis" validate:"oneof=redis memory"`
	BaseTTL             time.Duration `env:"CACHE_BASE_TTL"             envDefault:"1h"    validate:"gt=0"`
	MinTTL              time.Duration `env:"CACHE_MIN_TTL"              envDefault:"30m"   validate:"gt=0"`
	MaxTTL              time.Duration `env:"CACHE_MAX_TTL"              envDefault:"6h"    validate:"gtefield=MinTTL"`
	SimilarityThreshold float64       `env:"CACHE_SIMILARITY_THRESHOLD" envDefault:"0.8"   validate:"gt=0,lte=1"`
	CostNormalizer      float64       `env:"CACHE_COST_NORMALIZER"      envDefault:"0.5"   validate:"gt=0"`
}

// DefaultConfig returns the stock cache settings.
func DefaultConfig() Config {
	return Config{
		Backend:             "memory",
		BaseTTL:             time.Hour,
		MinTTL:              30 * time.Minute,
		MaxTTL:              6 * time.Hour,
		SimilarityThreshold: 0.8,
		CostNormalizer:      0.5,
	}
}

// PressureSource reports the budget steering currently in force.
type PressureSource interface {
	Remediation(ctx context.Context) domain.Remediation
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service looks up and stores analysis results by query fingerprint.
type Service struct {
	cfg        Config
	store      domain.CacheStore
	classifier *domain.Classifier
	pressure   PressureSource
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewService creates a new response cache service.
func NewService(
	cfg Config,
	store domain.CacheStore,
	classifier *domain.Classifier,
	pressure PressureSource,
	metrics *observability.Metrics,
	opts ...Option,
) *Service {
	s := &Service{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		pressure:   pressure,
		metrics:    metrics,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Fingerprint returns the cache key of a query.
func (s *Service) Fingerprint(q *domain.Query) string {
	return s.features(q).Fingerprint()
}

// Get returns an exact hit, else the most similar live neighbour above the
// similarity threshold whose complexity bucket covers the query's. It returns
// ErrCacheMiss or ErrCacheUnavailable otherwise.
func (s *Service) Get(ctx context.Context, q *domain.Query) (*domain.CacheHit, error) {
	if q == nil {
		return nil, errors.New("query cannot be nil")
	}

	logger := observability.FromContext(ctx)
	features := s.features(q)
	fingerprint := features.Fingerprint()
	now := s.now()

	entry, err := s.store.Get(ctx, fingerprint)
	switch {
	case err == nil && !entry.Expired(now):
		s.metrics.RecordCacheLookup("exact")
		logger.Info("cache hit",
			zap.String("fingerprint", fingerprint),
			zap.Float64("cost_avoided", entry.CostAvoided))
		return &domain.CacheHit{Entry: entry, Similarity: 1, Exact: true}, nil
	case err != nil && !errors.Is(err, domain.ErrCacheMiss):
		s.metrics.RecordCacheLookup("error")
		logger.Warn("cache lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}

	neighbors, err := s.store.Neighbors(ctx, features.Scope)
	if err != nil {
		s.metrics.RecordCacheLookup("error")
		logger.Warn("cache neighbour scan failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}

	threshold := s.threshold(ctx)
	var best *domain.CacheEntry
	var bestScore float64
	for _, candidate := range neighbors {
		if candidate == nil || candidate.Expired(now) || candidate.Fingerprint == fingerprint {
			continue
		}
		if !candidate.Features.Bucket.Covers(features.Bucket) {
			continue
		}
		score := Similarity(features, candidate.Features)
		if score >= threshold && score > bestScore {
			best, bestScore = candidate, score
		}
	}

	if best == nil {
		s.metrics.RecordCacheLookup("miss")
		logger.Info("cache miss",
			zap.String("fingerprint", fingerprint),
			zap.Int("neighbors", len(neighbors)),
			zap.Float64("threshold", threshold))
		return nil, domain.ErrCacheMiss
	}

	s.metrics.RecordCacheLookup("fuzzy")
	logger.Info("fuzzy cache hit",
		zap.String("fingerprint", fingerprint),
		zap.String("matched", best.Fingerprint),
		zap.Float64("similarity", bestScore))

	return &domain.CacheHit{Entry: best, Similarity: bestScore, Exact: false}, nil
}

// Put stores result under the query fingerprint. Concurrent writers of the
// same key overwrite each other wholesale.
func (s *Service) Put(ctx context.Context, q *domain.Query, result *domain.Result, costAvoided float64) error {
	if q == nil {
		return errors.New("query cannot be nil")
	}
	if result == nil {
		return errors.New("result cannot be nil")
	}

	features := s.features(q)
	ttl := s.TTL(ctx, costAvoided)
	now := s.now()

	entry := &domain.CacheEntry{
		Fingerprint: features.Fingerprint(),
		Features:    features,
		Result:      result,
		CostAvoided: costAvoided,
		StoredAt:    now,
		ExpiresAt:   now.Add(ttl),
	}

	if err := s.store.Set(ctx, entry, ttl); err != nil {
		observability.FromContext(ctx).Warn("cache store failed",
			zap.String("fingerprint", entry.Fingerprint),
			zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}

	observability.FromContext(ctx).Info("cached analysis",
		zap.String("fingerprint", entry.Fingerprint),
		zap.Duration("ttl", ttl),
		zap.Float64("cost_avoided", costAvoided))
	return nil
}

// TTL extends the base lifetime by the avoided cost and, while the budget
// prefers cached answers, by its threshold. The result is bounded by MinTTL
// and MaxTTL.
func (s *Service) TTL(ctx context.Context, costAvoided float64) time.Duration {
	ttl := float64(s.cfg.BaseTTL) * (1 + math.Max(costAvoided, 0)/s.cfg.CostNormalizer)

	if rem := s.remediation(ctx); rem.PreferCache {
		if rem.Threshold >= domain.ThresholdCritical {
			ttl *= 2
		} else {
			ttl *= 1.5
		}
	}

	ttl = math.Max(ttl, float64(s.cfg.MinTTL))
	ttl = math.Min(ttl, float64(s.cfg.MaxTTL))
	return time.Duration(ttl)
}

func (s *Service) threshold(ctx context.Context) float64 {
	if s.remediation(ctx).PreferCache {
		return s.cfg.SimilarityThreshold - preferCacheRelaxation
	}
	return s.cfg.SimilarityThreshold
}

func (s *Service) remediation(ctx context.Context) domain.Remediation {
	if s.pressure == nil {
		return domain.Remediation{ThrottleFactor: 1}
	}
	return s.pressure.Remediation(ctx)
}

func (s *Service) features(q *domain.Query) domain.Features {
	_, bucket := s.classifier.Classify(q)
	return domain.FeaturesOf(q, bucket)
}
