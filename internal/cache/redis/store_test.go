package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/cache/redis"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

func newStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewStore(client, "test:", 6*time.Hour), mr
}

func cacheEntry(fingerprint, scope string) *domain.CacheEntry {
	now := time.Date(2024, time.October, 9, 12, 0, 0, 0, time.UTC)
	return &domain.CacheEntry{
		Fingerprint: fingerprint,
		Features: domain.Features{
			Scope:  scope,
			Topics: []string{"roads"},
			Bucket: domain.BucketLow,
		},
		Result: &domain.Result{
			Status:     domain.StatusSuccess,
			Payload:    "brief " + fingerprint,
			Service:    "reasoning",
			Confidence: 0.95,
		},
		CostAvoided: 0.1,
		StoredAt:    now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()

	t.Run("should miss unknown fingerprints", func(t *testing.T) {
		store, _ := newStore(t)
		_, err := store.Get(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should round-trip an entry with ttl", func(t *testing.T) {
		store, mr := newStore(t)

		require.NoError(t, store.Set(ctx, cacheEntry("abc", "ward-12"), time.Hour))

		got, err := store.Get(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, "brief abc", got.Result.Payload)
		require.Equal(t, []string{"roads"}, got.Features.Topics)
		require.Equal(t, time.Hour, mr.TTL("test:cache:abc"))

		members, err := mr.SMembers("test:scope:ward-12")
		require.NoError(t, err)
		require.Equal(t, []string{"abc"}, members)
	})

	t.Run("should expire with the key", func(t *testing.T) {
		store, mr := newStore(t)

		require.NoError(t, store.Set(ctx, cacheEntry("abc", "ward-12"), time.Hour))
		mr.FastForward(time.Hour + time.Second)

		_, err := store.Get(ctx, "abc")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should report connection failures", func(t *testing.T) {
		store, mr := newStore(t)
		mr.Close()

		_, err := store.Get(ctx, "abc")
		require.Error(t, err)
		require.NotErrorIs(t, err, domain.ErrCacheMiss)
	})
}

func TestStore_Neighbors(t *testing.T) {
	ctx := context.Background()

	t.Run("should return entries of the scope", func(t *testing.T) {
		store, _ := newStore(t)

		require.NoError(t, store.Set(ctx, cacheEntry("a", "ward-12"), time.Hour))
		require.NoError(t, store.Set(ctx, cacheEntry("b", "ward-12"), time.Hour))
		require.NoError(t, store.Set(ctx, cacheEntry("c", "ward-13"), time.Hour))

		entries, err := store.Neighbors(ctx, "ward-12")
		require.NoError(t, err)
		require.Len(t, entries, 2)
	})

	t.Run("should prune members whose entry expired", func(t *testing.T) {
		store, mr := newStore(t)

		require.NoError(t, store.Set(ctx, cacheEntry("short", "ward-12"), time.Minute))
		require.NoError(t, store.Set(ctx, cacheEntry("long", "ward-12"), 2*time.Hour))
		mr.FastForward(2 * time.Minute)

		entries, err := store.Neighbors(ctx, "ward-12")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "long", entries[0].Fingerprint)

		members, err := mr.SMembers("test:scope:ward-12")
		require.NoError(t, err)
		require.Equal(t, []string{"long"}, members)
	})

	t.Run("should return nothing for an empty scope", func(t *testing.T) {
		store, _ := newStore(t)

		entries, err := store.Neighbors(ctx, "nowhere")
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestFloatsToBytes(t *testing.T) {
	buf := redis.FloatsToBytes([]float64{1, -2.5})
	require.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x20, 0xc0}, buf)
}
