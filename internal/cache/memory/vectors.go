package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

type vectorEntry struct {
	vector    []float64
	data      []byte
	indexedAt time.Time
	expiresAt time.Time
}

// VectorIndex is a brute-force cosine similarity index implementing
// domain.SimilaritySearch.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]vectorEntry
	now     func() time.Time
}

// NewVectorIndex creates an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		entries: make(map[string]vectorEntry),
		now:     time.Now,
	}
}

// Index stores a vector with its payload. A zero ttl never expires.
func (v *VectorIndex) Index(_ context.Context, key string, embedding []float64, data []byte, ttl time.Duration) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for %q", key)
	}

	now := v.now()
	entry := vectorEntry{
		vector:    append([]float64(nil), embedding...),
		data:      append([]byte(nil), data...),
		indexedAt: now,
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	v.mu.Lock()
	v.entries[key] = entry
	v.mu.Unlock()
	return nil
}

// Search returns the best matches at or above threshold, most similar first.
func (v *VectorIndex) Search(_ context.Context, embedding []float64, threshold float64, limit int) ([]*domain.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	now := v.now()

	v.mu.RLock()
	var results []*domain.SearchResult
	for key, entry := range v.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			continue
		}
		sim := cosine(embedding, entry.vector)
		if sim < threshold {
			continue
		}
		results = append(results, &domain.SearchResult{
			Key:        key,
			Similarity: sim,
			Data:       entry.data,
			IndexedAt:  entry.indexedAt,
		})
	}
	v.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity == results[j].Similarity {
			return results[i].Key < results[j].Key
		}
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
