package cache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/cache"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

func features(topics []string, from, to int) domain.Features {
	return domain.Features{
		Scope:  "ward-12",
		Topics: domain.NormalizeTopics(topics),
		From:   day(from),
		To:     day(to),
		Bucket: domain.BucketLow,
	}
}

func TestSimilarity(t *testing.T) {
	t.Run("should score identical features as one", func(t *testing.T) {
		f := features([]string{"roads", "water"}, 1, 8)
		require.InDelta(t, 1.0, cache.Similarity(f, f), 1e-9)
	})

	t.Run("should score different scopes as zero", func(t *testing.T) {
		a := features([]string{"roads"}, 1, 8)
		b := a
		b.Scope = "ward-13"
		require.Zero(t, cache.Similarity(a, b))
	})

	t.Run("should be symmetric", func(t *testing.T) {
		a := features([]string{"roads", "water supply", "power"}, 1, 8)
		b := features([]string{"water suply", "roads"}, 3, 10)
		require.InDelta(t, cache.Similarity(a, b), cache.Similarity(b, a), 1e-9)
	})

	t.Run("should credit near spellings", func(t *testing.T) {
		a := features([]string{"water supply"}, 1, 8)
		exact := features([]string{"water supply"}, 1, 8)
		typo := features([]string{"water suply"}, 1, 8)
		unrelated := features([]string{"healthcare"}, 1, 8)

		require.Greater(t, cache.Similarity(a, exact), cache.Similarity(a, typo))
		require.Greater(t, cache.Similarity(a, typo), 0.9)
		require.InDelta(t, 0.4, cache.Similarity(a, unrelated), 1e-9)
	})

	t.Run("should weigh window overlap", func(t *testing.T) {
		a := features([]string{"roads"}, 1, 8)
		half := features([]string{"roads"}, 1, 4)
		disjoint := features([]string{"roads"}, 10, 20)

		require.InDelta(t, 0.6+0.3*3.0/7.0+0.1, cache.Similarity(a, half), 1e-9)
		require.InDelta(t, 0.7, cache.Similarity(a, disjoint), 1e-9)
	})

	t.Run("should drop the bucket bonus for different complexity", func(t *testing.T) {
		a := features([]string{"roads"}, 1, 8)
		b := a
		b.Bucket = domain.BucketHigh
		require.InDelta(t, 0.9, cache.Similarity(a, b), 1e-9)
	})
}
