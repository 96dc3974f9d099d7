package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/ledger"
	"github.com/ashish-admin/stra-tech-sub002/internal/mocks"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/store/memory"
)

type failingStore struct {
	mu   sync.Mutex
	fail bool
	*memory.Store
}

func (s *failingStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *failingStore) failing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *failingStore) Append(ctx context.Context, entry domain.CostEntry) error {
	if s.failing() {
		return errors.New("disk full")
	}
	return s.Store.Append(ctx, entry)
}

func (s *failingStore) SumSince(ctx context.Context, since time.Time) (map[string]float64, error) {
	if s.failing() {
		return nil, errors.New("database locked")
	}
	return s.Store.SumSince(ctx, since)
}

func testCatalog(t *testing.T) *domain.InMemoryCatalog {
	t.Helper()
	catalog, err := domain.NewInMemoryCatalog(
		domain.ServiceDescriptor{
			Name: "reasoning", Kind: domain.KindReasoning,
			Cost: domain.CostModel{InputPer1K: 0.003, OutputPer1K: 0.015},
		},
		domain.ServiceDescriptor{
			Name: "retrieval", Kind: domain.KindRetrieval,
			Cost: domain.CostModel{PerCall: 0.005, InputPer1K: 0.001, OutputPer1K: 0.001},
		},
		domain.ServiceDescriptor{Name: "local", Kind: domain.KindLocal},
	)
	require.NoError(t, err)
	return catalog
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLedger(t *testing.T, store domain.CostStore, limit float64) (*ledger.Ledger, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)}
	cfg := ledger.DefaultConfig()
	cfg.MonthlyLimit = limit
	l := ledger.NewLedger(cfg, store, testCatalog(t), domain.NewStandardCostCalculator(), nil, ledger.WithClock(clk.Now))
	return l, clk
}

func TestLedger_RecordUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("should aggregate per service and project month end", func(t *testing.T) {
		l, _ := newLedger(t, memory.NewStore(), 100)

		require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 2000, 10))
		require.NoError(t, l.RecordUsage(ctx, "retrieval", "search", 500, 5))
		require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1000, 5))

		summary := l.Summary(ctx)
		require.InDelta(t, 20, summary.TotalSpend, 1e-9)
		require.InDelta(t, 15, summary.PerService["reasoning"], 1e-9)
		require.InDelta(t, 5, summary.PerService["retrieval"], 1e-9)
		require.InDelta(t, 10, summary.DaysElapsed, 1e-9)
		require.Equal(t, 31, summary.DaysInPeriod)
		require.InDelta(t, 62, summary.ProjectedSpend, 1e-9)
		require.InDelta(t, 0.2, summary.Utilization, 1e-9)
		require.NoError(t, l.Verify(ctx))
	})

	t.Run("should reject unknown services", func(t *testing.T) {
		l, _ := newLedger(t, memory.NewStore(), 100)
		err := l.RecordUsage(ctx, "oracle", "analysis", 1, 1)
		require.ErrorIs(t, err, domain.ErrUnknownService)
	})

	t.Run("should reject negative cost", func(t *testing.T) {
		l, _ := newLedger(t, memory.NewStore(), 100)
		require.Error(t, l.RecordUsage(ctx, "local", "analysis", 1, -1))
	})

	t.Run("should never lose or double count concurrent entries", func(t *testing.T) {
		store := memory.NewStore()
		l, _ := newLedger(t, store, 1000)

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				service := "reasoning"
				if i%2 == 0 {
					service = "retrieval"
				}
				assert.NoError(t, l.RecordUsage(ctx, service, "analysis", 100, 0.25))
				_ = l.CurrentUtilization(ctx)
			}(i)
		}
		wg.Wait()

		summary := l.Summary(ctx)
		require.InDelta(t, 25, summary.TotalSpend, 1e-9)
		entries, err := l.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 100)
		require.NoError(t, l.Verify(ctx))
	})

	t.Run("should roll over at the start of a month", func(t *testing.T) {
		l, clk := newLedger(t, memory.NewStore(), 100)

		require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1, 40))
		clk.Advance(21 * 24 * time.Hour)

		summary := l.Summary(ctx)
		require.Equal(t, time.November, summary.PeriodStart.Month())
		require.Zero(t, summary.TotalSpend)
	})

	t.Run("should reload the period aggregate from the store", func(t *testing.T) {
		store := memory.NewStore()
		first, _ := newLedger(t, store, 100)
		require.NoError(t, first.RecordUsage(ctx, "reasoning", "analysis", 1, 30))

		restarted, _ := newLedger(t, store, 100)
		require.InDelta(t, 0.3, restarted.CurrentUtilization(ctx), 1e-9)
	})
}

func TestLedger_Thresholds(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		spend     float64
		threshold domain.Threshold
		check     func(t *testing.T, r domain.Remediation)
	}{
		{
			name: "normal", spend: 50, threshold: domain.ThresholdNormal,
			check: func(t *testing.T, r domain.Remediation) {
				require.False(t, r.PreferCache)
				require.InDelta(t, 1, r.ThrottleFactor, 1e-9)
			},
		},
		{
			name: "warning", spend: 80, threshold: domain.ThresholdWarning,
			check: func(t *testing.T, r domain.Remediation) {
				require.True(t, r.PreferCache)
				require.True(t, r.CheapestFirst)
				require.False(t, r.SuppressMostExpensive)
			},
		},
		{
			name: "critical", spend: 91, threshold: domain.ThresholdCritical,
			check: func(t *testing.T, r domain.Remediation) {
				require.True(t, r.SuppressMostExpensive)
				require.False(t, r.ForceLocal)
			},
		},
		{
			name: "emergency", spend: 97, threshold: domain.ThresholdEmergency,
			check: func(t *testing.T, r domain.Remediation) {
				require.True(t, r.ForceLocal)
				require.InDelta(t, 0.6, r.ThrottleFactor, 1e-9)
			},
		},
		{
			name: "over budget clamps throttle", spend: 150, threshold: domain.ThresholdEmergency,
			check: func(t *testing.T, r domain.Remediation) {
				require.InDelta(t, 0.1, r.ThrottleFactor, 1e-9)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newLedger(t, memory.NewStore(), 100)
			require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1, tt.spend))

			require.Equal(t, tt.threshold, l.CheckThreshold(ctx))
			tt.check(t, l.Remediation(ctx))
		})
	}
}

func TestLedger_ThresholdListener(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, memory.NewStore(), 100)

	var seen []domain.Threshold
	l.OnThreshold(func(_ context.Context, _, current domain.Threshold, _ domain.Remediation) {
		seen = append(seen, current)
	})

	require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1, 50))
	require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1, 31))
	require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1, 1))
	require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1, 10))

	require.Equal(t, []domain.Threshold{domain.ThresholdWarning, domain.ThresholdCritical}, seen)
}

func TestLedger_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.NewStore()}
	l, clk := newLedger(t, store, 100)

	require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1, 10))
	require.Equal(t, domain.ThresholdNormal, l.CheckThreshold(ctx))

	store.setFail(true)
	require.Error(t, l.RecordUsage(ctx, "reasoning", "analysis", 1, 10))
	require.InDelta(t, 1.0, l.CurrentUtilization(ctx), 1e-9)
	require.Equal(t, domain.ThresholdEmergency, l.CheckThreshold(ctx))
	require.True(t, l.Remediation(ctx).ForceLocal)
	require.ErrorIs(t, l.Verify(ctx), ledger.ErrDegraded)

	store.setFail(false)
	clk.Advance(time.Second)
	require.InDelta(t, 0.1, l.CurrentUtilization(ctx), 1e-9)
}

func TestLedger_EstimateCost(t *testing.T) {
	l, _ := newLedger(t, memory.NewStore(), 100)
	q := &domain.Query{Scope: "w1", Topics: []string{"roads", "jobs"}, Depth: domain.DepthDeep}

	reasoning := l.EstimateCost("reasoning", q)
	retrieval := l.EstimateCost("retrieval", q)
	local := l.EstimateCost("local", q)

	// 520 input tokens, 1600 output tokens
	require.InDelta(t, 0.52*0.003+1.6*0.015, reasoning, 1e-9)
	require.InDelta(t, 0.005+0.52*0.001+1.6*0.001, retrieval, 1e-9)
	require.Zero(t, local)
	require.Zero(t, l.EstimateCost("unknown", q))
}

func TestLedger_StoreContract(t *testing.T) {
	periodStart := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("should append an attributed entry and rebuild from period sums", func(t *testing.T) {
		store := mocks.NewMockCostStore(t)
		ctx := observability.WithRequestID(context.Background(), "req-7")

		store.EXPECT().
			Append(mock.Anything, mock.MatchedBy(func(e domain.CostEntry) bool {
				return e.Service == "reasoning" && e.RequestID == "req-7" && e.Units == 1200 && e.ID != ""
			})).
			Return(nil).
			Once()
		store.EXPECT().
			SumSince(mock.Anything, periodStart).
			Return(map[string]float64{"reasoning": 2.5}, nil)

		l, _ := newLedger(t, store, 10)
		require.NoError(t, l.RecordUsage(ctx, "reasoning", "analysis", 1200, 2.5))

		summary := l.Summary(ctx)
		require.InDelta(t, 2.5, summary.TotalSpend, 1e-9)
		require.InDelta(t, 0.25, summary.Utilization, 1e-9)
		require.False(t, summary.Degraded)
	})

	t.Run("should wrap listing failures", func(t *testing.T) {
		store := mocks.NewMockCostStore(t)
		store.EXPECT().
			EntriesSince(mock.Anything, periodStart).
			Return(nil, errors.New("io error")).
			Once()

		l, _ := newLedger(t, store, 10)
		_, err := l.Entries(context.Background())
		require.ErrorContains(t, err, "listing cost entries")
	})
}
