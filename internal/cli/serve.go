package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/config"
	httpapi "github.com/ashish-admin/stra-tech-sub002/internal/http"
	"github.com/ashish-admin/stra-tech-sub002/internal/ledger"
	"github.com/ashish-admin/stra-tech-sub002/internal/routing"
	"github.com/ashish-admin/stra-tech-sub002/internal/store/sqlite"
	"github.com/ashish-admin/stra-tech-sub002/internal/stream"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the 'serve' command.
func NewServeCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP server",
		Long: `Start the orchestration engine and serve analyses over HTTP.

Endpoints:
  POST   /v1/analyses              submit a query and stream its events
  GET    /v1/analyses/{id}/events  reattach to a stream (Last-Event-ID)
  DELETE /v1/analyses/{id}         cancel a running analysis
  GET    /v1/budget                spend, remediation and breaker state
  GET    /health, /metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(envFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load")

	return cmd
}

type serveDeps struct {
	dig.In

	Logger *zap.Logger
	Server *httpapi.Server
	Router *routing.Router
	Hub    *stream.Hub
	Ledger *ledger.Ledger
	Store  *sqlite.Store
	Redis  *goredis.Client
}

func runServe(ctx context.Context, cfg *config.Config) error {
	container, err := BuildContainer(cfg)
	if err != nil {
		return err
	}

	return container.Invoke(func(deps serveDeps) error {
		logger := deps.Logger
		defer func() { _ = logger.Sync() }()
		defer deps.Store.Close()
		if deps.Redis != nil {
			defer deps.Redis.Close()
		}

		if _, err := deps.Ledger.Refresh(ctx); err != nil {
			logger.Warn("ledger summary unavailable at start-up", zap.Error(err))
		}

		go deps.Hub.Run(ctx)

		serverErr := make(chan error, 1)
		go func() {
			serverErr <- deps.Server.Start()
		}()

		select {
		case err := <-serverErr:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		// Cancelled analyses emit their terminal events, which ends open
		// streams before the server drains connections.
		routerErr := deps.Router.Shutdown(shutdownCtx)
		httpErr := deps.Server.Shutdown(shutdownCtx)
		if err := errors.Join(routerErr, httpErr); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}

		logger.Info("shutdown complete")
		return nil
	})
}
