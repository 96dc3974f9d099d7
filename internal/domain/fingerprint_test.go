package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

func testWindow() domain.TimeWindow {
	return domain.TimeWindow{
		From: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeTopics(t *testing.T) {
	got := domain.NormalizeTopics([]string{" Water  Supply", "jobs", "JOBS", "", "Roads"})
	require.Equal(t, []string{"jobs", "roads", "water supply"}, got)
}

func TestFingerprint(t *testing.T) {
	base := &domain.Query{Scope: "Ward-12", Topics: []string{"roads", "jobs"}, Window: testWindow()}

	t.Run("should ignore topic order, case and free text", func(t *testing.T) {
		other := &domain.Query{
			Scope:    " ward-12 ",
			Topics:   []string{"Jobs", "ROADS"},
			Window:   testWindow(),
			Question: "what changed this week?",
		}

		require.Equal(t,
			domain.FeaturesOf(base, domain.BucketLow).Fingerprint(),
			domain.FeaturesOf(other, domain.BucketLow).Fingerprint())
	})

	t.Run("should round the window to whole days", func(t *testing.T) {
		shifted := *base
		shifted.Window.To = shifted.Window.To.Add(3 * time.Hour)

		require.Equal(t,
			domain.FeaturesOf(base, domain.BucketLow).Fingerprint(),
			domain.FeaturesOf(&shifted, domain.BucketLow).Fingerprint())
	})

	t.Run("should differ by complexity bucket", func(t *testing.T) {
		require.NotEqual(t,
			domain.FeaturesOf(base, domain.BucketLow).Fingerprint(),
			domain.FeaturesOf(base, domain.BucketHigh).Fingerprint())
	})

	t.Run("should differ by scope", func(t *testing.T) {
		other := *base
		other.Scope = "ward-13"

		require.NotEqual(t,
			domain.FeaturesOf(base, domain.BucketLow).Fingerprint(),
			domain.FeaturesOf(&other, domain.BucketLow).Fingerprint())
	})
}

func TestClassifier(t *testing.T) {
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())

	t.Run("quick single-topic query is low", func(t *testing.T) {
		q := &domain.Query{Scope: "w1", Topics: []string{"roads"}, Window: testWindow(), Depth: domain.DepthQuick}
		score, bucket := classifier.Classify(q)
		require.Less(t, score, 0.35)
		require.Equal(t, domain.BucketLow, bucket)
	})

	t.Run("deep broad query over a long window is high", func(t *testing.T) {
		window := domain.TimeWindow{From: testWindow().To.AddDate(0, -6, 0), To: testWindow().To}
		q := &domain.Query{
			Scope:  "w1",
			Topics: []string{"roads", "jobs", "water", "health", "schools", "housing"},
			Window: window,
			Depth:  domain.DepthDeep,
		}
		score, bucket := classifier.Classify(q)
		require.InDelta(t, 1.0, score, 1e-9)
		require.Equal(t, domain.BucketHigh, bucket)
	})

	t.Run("standard depth lands in the middle", func(t *testing.T) {
		q := &domain.Query{Scope: "w1", Topics: []string{"roads", "jobs", "water"}, Window: testWindow()}
		_, bucket := classifier.Classify(q)
		require.Equal(t, domain.BucketMedium, bucket)
	})
}

func TestComplexityBucket_Covers(t *testing.T) {
	require.True(t, domain.BucketHigh.Covers(domain.BucketLow))
	require.True(t, domain.BucketMedium.Covers(domain.BucketMedium))
	require.False(t, domain.BucketLow.Covers(domain.BucketMedium))
	require.False(t, domain.BucketMedium.Covers(domain.BucketHigh))
	require.False(t, domain.ComplexityBucket("").Covers(domain.BucketLow))
}
