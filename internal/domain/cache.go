package domain

import (
	"context"
	"time"
)

// CacheStore persists cache entries.
type CacheStore interface {
	// Get returns the entry stored under fingerprint or ErrCacheMiss.
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Set stores entry wholesale, replacing any previous value.
	Set(ctx context.Context, entry *CacheEntry, ttl time.Duration) error

	// Neighbors returns live entries sharing the given scope.
	Neighbors(ctx context.Context, scope string) ([]*CacheEntry, error)
}

// EmbeddingGenerator creates vector embeddings from text.
type EmbeddingGenerator interface {
	// Generate creates a vector embedding from text.
	Generate(ctx context.Context, text string) (*Embedding, error)

	// Name returns the generator identifier.
	Name() string

	// Dimension returns the vector dimension.
	Dimension() int
}

// SimilaritySearch performs vector similarity search operations.
type SimilaritySearch interface {
	// Search finds similar vectors above the threshold.
	Search(ctx context.Context, embedding []float64, threshold float64, limit int) ([]*SearchResult, error)

	// Index stores a vector with associated data.
	Index(ctx context.Context, key string, embedding []float64, data []byte, ttl time.Duration) error
}

// Embedding is a generated vector and the tokens billed for it.
type Embedding struct {
	Vector []float64
	Tokens int
}

// Features are the normalized query fields used for fuzzy matching.
type Features struct {
	Scope  string           `json:"scope"`
	Topics []string         `json:"topics"`
	From   time.Time        `json:"from"`
	To     time.Time        `json:"to"`
	Bucket ComplexityBucket `json:"bucket"`
}

// CacheEntry maps a fingerprint to a stored result.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Features    Features  `json:"features"`
	Result      *Result   `json:"result"`
	CostAvoided float64   `json:"cost_avoided"`
	StoredAt    time.Time `json:"stored_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheHit is a successful cache lookup.
type CacheHit struct {
	Entry      *CacheEntry
	Similarity float64
	Exact      bool
}

// SearchResult represents a vector search result.
type SearchResult struct {
	Key        string
	Similarity float64
	Data       []byte
	IndexedAt  time.Time
}
