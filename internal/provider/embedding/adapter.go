// Package embedding provides the historical-context service. It embeds the
// query and looks up related past analyses in the analysis memory.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/prompt"
)

// ServiceName identifies the embedding service in the catalog.
const ServiceName = "embedding"

const memorySourcePrefix = "memory:"

// record is the payload stored next to each remembered vector.
type record struct {
	Scope      string    `json:"scope"`
	Topics     []string  `json:"topics"`
	Summary    string    `json:"summary"`
	Confidence float64   `json:"confidence"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Adapter implements domain.Adapter on top of an embedding generator and an
// optional similarity index.
type Adapter struct {
	cfg       Config
	generator domain.EmbeddingGenerator
	memory    domain.SimilaritySearch
	now       func() time.Time
}

// NewAdapter creates a new embedding adapter. memory may be nil, in which
// case the service only produces the query vector.
func NewAdapter(cfg Config, generator domain.EmbeddingGenerator, memory domain.SimilaritySearch) (*Adapter, error) {
	if generator == nil {
		return nil, errors.New("embedding generator is required")
	}

	return &Adapter{
		cfg:       cfg,
		generator: generator,
		memory:    memory,
		now:       time.Now,
	}, nil
}

// Execute embeds the query and returns related past analyses as context.
func (a *Adapter) Execute(ctx context.Context, q *domain.Query, timeout time.Duration) (*domain.Result, error) {
	if q == nil {
		return nil, errors.New("query cannot be nil")
	}

	started := time.Now()
	callCtx, cancel := provider.WithTimeout(ctx, timeout)
	defer cancel()

	embedding, err := a.generator.Generate(callCtx, prompt.EmbeddingText(q))
	if err != nil {
		var upstreamErr *domain.UpstreamError
		if errors.As(err, &upstreamErr) {
			return nil, err
		}
		return nil, provider.Classify(ctx, ServiceName, 0, err)
	}

	matches := a.recall(callCtx, embedding.Vector)

	return provider.Finish(&domain.Result{
		Payload:   renderHistory(matches),
		Sources:   sources(matches),
		Embedding: embedding.Vector,
		Usage: domain.Usage{
			PromptTokens: embedding.Tokens,
		},
	}, ServiceName, domain.KindEmbedding, started), nil
}

// Remember indexes a finished analysis under key so later queries can find it.
func (a *Adapter) Remember(ctx context.Context, key string, q *domain.Query, vector []float64, result *domain.Result) error {
	if a.memory == nil || len(vector) == 0 || !result.Succeeded() {
		return nil
	}

	data, err := json.Marshal(record{
		Scope:      q.Scope,
		Topics:     domain.NormalizeTopics(q.Topics),
		Summary:    truncate(result.Payload, a.cfg.SummaryLength),
		Confidence: result.Confidence,
		AnalyzedAt: a.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal analysis record: %w", err)
	}

	if err := a.memory.Index(ctx, key, vector, data, a.cfg.MemoryTTL); err != nil {
		return fmt.Errorf("failed to remember analysis: %w", err)
	}
	return nil
}

// Name returns the service identifier.
func (a *Adapter) Name() string {
	return ServiceName
}

// Kind returns the service variant.
func (a *Adapter) Kind() domain.ServiceKind {
	return domain.KindEmbedding
}

// recall is best effort: a failing index only loses historical context.
func (a *Adapter) recall(ctx context.Context, vector []float64) []matched {
	if a.memory == nil || a.cfg.MemoryLimit <= 0 {
		return nil
	}

	results, err := a.memory.Search(ctx, vector, a.cfg.MemoryThreshold, a.cfg.MemoryLimit)
	if err != nil {
		observability.FromContext(ctx).Warn("analysis memory unavailable", zap.Error(err))
		return nil
	}

	out := make([]matched, 0, len(results))
	for _, res := range results {
		var rec record
		if err := json.Unmarshal(res.Data, &rec); err != nil {
			continue
		}
		out = append(out, matched{key: res.Key, similarity: res.Similarity, record: rec})
	}
	return out
}

type matched struct {
	key        string
	similarity float64
	record     record
}

func renderHistory(matches []matched) string {
	if len(matches) == 0 {
		return "No related past analyses."
	}

	var b strings.Builder
	b.WriteString("Related past analyses:\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "- [%s] %s (%s, similarity %.2f): %s\n",
			m.record.AnalyzedAt.Format(time.DateOnly),
			m.record.Scope,
			strings.Join(m.record.Topics, ", "),
			m.similarity,
			m.record.Summary)
	}
	return b.String()
}

func sources(matches []matched) []string {
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = memorySourcePrefix + m.key
	}
	return out
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
