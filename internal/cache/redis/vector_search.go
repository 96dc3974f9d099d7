package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

const (
	redisDialectVersion = 2

	vectorField    = "embedding"
	dataField      = "data"
	indexedAtField = "indexed_at"
	scoreField     = "score"
)

// VectorSearch keeps embeddings of past analyses in a RediSearch index so
// that new requests can pull related findings into their context.
type VectorSearch struct {
	client             *redis.Client
	indexName          string
	prefix             string
	embeddingDimension int
	now                func() time.Time
}

// NewVectorSearch creates the analysis memory and its index when missing.
func NewVectorSearch(
	ctx context.Context,
	client *redis.Client,
	indexName string,
	prefix string,
	embeddingDimension int,
) (*VectorSearch, error) {
	if embeddingDimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", embeddingDimension)
	}

	v := &VectorSearch{
		client:             client,
		indexName:          indexName,
		prefix:             prefix + "analysis:",
		embeddingDimension: embeddingDimension,
		now:                time.Now,
	}

	if err := v.createIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return v, nil
}

// FloatsToBytes packs a vector as little-endian FLOAT32 values.
func FloatsToBytes(fs []float64) []byte {
	const bytesPerFloat32 = 4
	buf := make([]byte, len(fs)*bytesPerFloat32)

	for i, f := range fs {
		u := math.Float32bits(float32(f))
		binary.LittleEndian.PutUint32(buf[i*bytesPerFloat32:], u)
	}

	return buf
}

// Search returns up to limit stored analyses whose cosine similarity to
// embed is at least threshold.
func (v *VectorSearch) Search(
	ctx context.Context,
	embed []float64,
	threshold float64,
	limit int,
) ([]*domain.SearchResult, error) {
	if len(embed) != v.embeddingDimension {
		return nil, fmt.Errorf("embedding has %d dimensions, index expects %d", len(embed), v.embeddingDimension)
	}
	if limit <= 0 {
		return nil, nil
	}

	logger := observability.FromContext(ctx)
	logger.Debug("searching analysis memory",
		zap.String("index", v.indexName),
		zap.Float64("threshold", threshold),
		zap.Int("limit", limit))

	query := fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", limit, vectorField, scoreField)

	results, err := v.client.FTSearchWithArgs(ctx, v.indexName, query,
		&redis.FTSearchOptions{
			Return: []redis.FTSearchReturn{
				{FieldName: dataField},
				{FieldName: indexedAtField},
				{FieldName: scoreField},
			},
			DialectVersion: redisDialectVersion,
			Params: map[string]any{
				"vec": FloatsToBytes(embed),
			},
		},
	).Result()
	if err != nil {
		logger.Warn("analysis memory search failed", zap.Error(err))
		return nil, fmt.Errorf("search failed: %w", err)
	}

	matches := make([]*domain.SearchResult, 0, len(results.Docs))
	for _, doc := range results.Docs {
		if match := v.parseSearchResult(ctx, doc, threshold); match != nil {
			matches = append(matches, match)
		}
	}

	logger.Debug("analysis memory search completed",
		zap.Int("candidates", len(results.Docs)),
		zap.Int("matches", len(matches)))

	return matches, nil
}

// Index stores the vector and payload of an analysis under key.
func (v *VectorSearch) Index(
	ctx context.Context,
	key string,
	embedding []float64,
	data []byte,
	ttl time.Duration,
) error {
	if len(embedding) != v.embeddingDimension {
		return fmt.Errorf("embedding has %d dimensions, index expects %d", len(embedding), v.embeddingDimension)
	}

	hashKey := key
	if !strings.HasPrefix(hashKey, v.prefix) {
		hashKey = v.prefix + key
	}

	pipe := v.client.Pipeline()
	pipe.HSet(ctx, hashKey,
		vectorField, FloatsToBytes(embedding),
		dataField, string(data),
		indexedAtField, v.now().Unix(),
	)
	if ttl > 0 {
		pipe.Expire(ctx, hashKey, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		observability.FromContext(ctx).Warn("analysis memory index failed",
			zap.String("key", hashKey),
			zap.Error(err))
		return fmt.Errorf("failed to index: %w", err)
	}

	return nil
}

func (v *VectorSearch) createIndex(ctx context.Context) error {
	logger := observability.FromContext(ctx)

	if _, err := v.client.FTInfo(ctx, v.indexName).Result(); err == nil {
		logger.Info("analysis memory index already exists",
			zap.String("index_name", v.indexName))
		return nil
	}

	logger.Info("creating analysis memory index",
		zap.String("index_name", v.indexName),
		zap.String("prefix", v.prefix),
		zap.Int("embedding_dimension", v.embeddingDimension))

	_, err := v.client.FTCreate(ctx, v.indexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{v.prefix},
		},
		&redis.FieldSchema{
			FieldName: vectorField,
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				FlatOptions: &redis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            v.embeddingDimension,
					DistanceMetric: "COSINE",
				},
			},
		},
		&redis.FieldSchema{
			FieldName: dataField,
			FieldType: redis.SearchFieldTypeText,
		},
		&redis.FieldSchema{
			FieldName: indexedAtField,
			FieldType: redis.SearchFieldTypeNumeric,
			Sortable:  true,
		},
	).Result()
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (v *VectorSearch) parseSearchResult(
	ctx context.Context,
	doc redis.Document,
	threshold float64,
) *domain.SearchResult {
	// The KNN distance comes back as a regular field, not doc.Score.
	scoreStr, ok := doc.Fields[scoreField]
	if !ok {
		return nil
	}
	distance, err := strconv.ParseFloat(scoreStr, 64)
	if err != nil {
		return nil
	}

	similarity := 1.0 - distance
	if similarity < threshold {
		return nil
	}

	data, ok := doc.Fields[dataField]
	if !ok {
		observability.FromContext(ctx).Warn("analysis memory document without data",
			zap.String("key", doc.ID))
		return nil
	}

	var indexedAt time.Time
	if ts, ok := doc.Fields[indexedAtField]; ok {
		if sec, err := strconv.ParseInt(ts, 10, 64); err == nil {
			indexedAt = time.Unix(sec, 0)
		}
	}

	return &domain.SearchResult{
		Key:        strings.TrimPrefix(doc.ID, v.prefix),
		Similarity: similarity,
		Data:       []byte(data),
		IndexedAt:  indexedAt,
	}
}
