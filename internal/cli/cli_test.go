package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/cli"
	"github.com/ashish-admin/stra-tech-sub002/internal/config"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/ledger"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/registry"
	"github.com/ashish-admin/stra-tech-sub002/internal/routing"
	"github.com/ashish-admin/stra-tech-sub002/internal/store/sqlite"
	"github.com/ashish-admin/stra-tech-sub002/internal/stream"
)

func offlineEnv(t *testing.T) string {
	t.Helper()
	os.Clearenv()

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("LEDGER_DB_PATH", dbPath)
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("LOCAL_BACKEND", "echo")
	t.Setenv("BUDGET_MONTHLY_LIMIT", "10")
	return dbPath
}

func TestBuildContainer(t *testing.T) {
	t.Run("should wire an offline engine around the local fallback", func(t *testing.T) {
		offlineEnv(t)
		cfg, err := config.Parse()
		require.NoError(t, err)

		container, err := cli.BuildContainer(cfg)
		require.NoError(t, err)

		err = container.Invoke(func(
			catalog *domain.InMemoryCatalog,
			reg *registry.Registry,
			router *routing.Router,
			hub *stream.Hub,
			store *sqlite.Store,
		) error {
			defer store.Close()

			names, err := reg.List(context.Background())
			require.NoError(t, err)
			require.Equal(t, []string{"local"}, names)
			require.Len(t, catalog.All(), 1)

			q := &domain.Query{
				Scope:  "ward-12",
				Topics: []string{"water supply"},
				Window: domain.TimeWindow{
					From: time.Now().Add(-7 * 24 * time.Hour),
					To:   time.Now(),
				},
			}
			require.NoError(t, hub.Open("req-offline"))
			out, err := router.Route(context.Background(), "req-offline", q, "test")
			require.NoError(t, err)
			require.Equal(t, routing.StateDegraded, out.State)
			require.Equal(t, "local", out.Result.Service)

			last, ok := hub.Last("req-offline")
			require.True(t, ok)
			require.Positive(t, last)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("should refuse a catalog without a local fallback", func(t *testing.T) {
		offlineEnv(t)
		path := filepath.Join(t.TempDir(), "services.yaml")
		require.NoError(t, os.WriteFile(path, []byte("services:\n  - name: local\n    kind: retrieval\n"), 0o600))
		t.Setenv("SERVICES_CATALOG_PATH", path)

		cfg, err := config.Parse()
		require.NoError(t, err)

		container, err := cli.BuildContainer(cfg)
		require.NoError(t, err)

		err = container.Invoke(func(*routing.Router) {})
		require.ErrorContains(t, err, "local fallback")
	})

	t.Run("should refuse a deadline the local fallback cannot fit in", func(t *testing.T) {
		offlineEnv(t)
		t.Setenv("ROUTER_DEADLINE", "1m")

		cfg, err := config.Parse()
		require.NoError(t, err)

		container, err := cli.BuildContainer(cfg)
		require.NoError(t, err)

		err = container.Invoke(func(*routing.Router) {})
		require.ErrorContains(t, err, "router deadline")
	})
}

func TestUsageCmd(t *testing.T) {
	dbPath := offlineEnv(t)

	store, err := sqlite.Open(dbPath)
	require.NoError(t, err)

	cfg, err := config.Parse()
	require.NoError(t, err)
	catalog, err := config.LoadCatalog(cfg)
	require.NoError(t, err)

	l := ledger.NewLedger(cfg.Ledger, store, catalog, domain.NewStandardCostCalculator(), nil)
	ctx := context.Background()
	require.NoError(t, l.RecordUsage(ctx, "reasoning", "analyze", 2000, 8.25))
	require.NoError(t, l.RecordUsage(ctx, "retrieval", "search", 1, 0.5))
	require.NoError(t, store.Close())

	missingEnv := filepath.Join(t.TempDir(), "absent.env")

	t.Run("should print the period summary", func(t *testing.T) {
		var out bytes.Buffer
		cmd := cli.NewUsageCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--env-file", missingEnv})

		require.NoError(t, cmd.ExecuteContext(ctx))
		require.Contains(t, out.String(), "$8.7500 of $10.00")
		require.Contains(t, out.String(), "87.5%")
		require.Contains(t, out.String(), "warning")
		require.Contains(t, out.String(), "reasoning")
		require.Contains(t, out.String(), "94.3%")
	})

	t.Run("should emit json with entries", func(t *testing.T) {
		var out bytes.Buffer
		cmd := cli.NewUsageCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--env-file", missingEnv, "--json", "--entries"})

		require.NoError(t, cmd.ExecuteContext(ctx))

		var report cli.UsageReport
		require.NoError(t, json.Unmarshal(out.Bytes(), &report))
		require.InDelta(t, 8.75, report.Summary.TotalSpend, 1e-9)
		require.Len(t, report.Entries, 2)
	})
}
