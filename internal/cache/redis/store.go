package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

const (
	entryField     = "entry"
	scopeField     = "scope"
	expiresAtField = "expires_at"
)

// Store implements domain.CacheStore on Redis hashes. Every scope keeps a
// set of fingerprints used for neighbour scans.
type Store struct {
	client   *redis.Client
	prefix   string
	scopeTTL time.Duration
}

// NewStore creates a Redis cache store. scopeTTL bounds the lifetime of the
// scope index and should be at least the maximum entry TTL.
func NewStore(client *redis.Client, prefix string, scopeTTL time.Duration) *Store {
	return &Store{
		client:   client,
		prefix:   prefix,
		scopeTTL: scopeTTL,
	}
}

func (s *Store) entryKey(fingerprint string) string {
	return s.prefix + "cache:" + fingerprint
}

func (s *Store) scopeKey(scope string) string {
	return s.prefix + "scope:" + scope
}

// Get returns the entry stored under fingerprint.
func (s *Store) Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error) {
	data, err := s.client.HGet(ctx, s.entryKey(fingerprint), entryField).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

// Set stores entry wholesale and refreshes the scope index.
func (s *Store) Set(ctx context.Context, entry *domain.CacheEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	key := s.entryKey(entry.Fingerprint)
	scopeKey := s.scopeKey(entry.Features.Scope)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		entryField, data,
		scopeField, entry.Features.Scope,
		expiresAtField, entry.ExpiresAt.Unix(),
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	pipe.SAdd(ctx, scopeKey, entry.Fingerprint)
	if s.scopeTTL > 0 {
		pipe.Expire(ctx, scopeKey, s.scopeTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Neighbors returns the live entries of a scope and prunes expired members.
func (s *Store) Neighbors(ctx context.Context, scope string) ([]*domain.CacheEntry, error) {
	scopeKey := s.scopeKey(scope)

	fingerprints, err := s.client.SMembers(ctx, scopeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list scope members: %w", err)
	}
	if len(fingerprints) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(fingerprints))
	for i, fingerprint := range fingerprints {
		cmds[i] = pipe.HGet(ctx, s.entryKey(fingerprint), entryField)
	}
	// Missing members surface as redis.Nil on their own command.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read scope entries: %w", err)
	}

	logger := observability.FromContext(ctx)
	var stale []interface{}
	entries := make([]*domain.CacheEntry, 0, len(fingerprints))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, fingerprints[i])
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cache entry: %w", err)
		}

		var entry domain.CacheEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			logger.Warn("skipping corrupt cache entry",
				zap.String("fingerprint", fingerprints[i]),
				zap.Error(err))
			continue
		}
		entries = append(entries, &entry)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, scopeKey, stale...).Err(); err != nil {
			logger.Warn("failed to prune scope index", zap.Error(err))
		}
	}

	return entries, nil
}
