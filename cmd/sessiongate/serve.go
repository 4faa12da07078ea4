package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/session-gate/internal/api/http"
	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/observability"
	"github.com/spec-kit/session-gate/internal/persistence"
	"github.com/spec-kit/session-gate/internal/service"
	"github.com/spec-kit/session-gate/internal/session"
	"github.com/spec-kit/session-gate/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one application process",
		Long: `Run the session gate for the application named by APP_NAME.

Configuration comes from the environment (and .env when present). The slot
backend is chosen with STORE_DRIVER: memory, redis or postgres.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.App.Version == "dev" {
				cfg.App.Version = version
			}
			return serve(cmd.Context(), cfg, migrationsDir)
		},
	}

	cmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "directory holding postgres migrations")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, migrationsDir string) error {
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var redisClient *redis.Client
	if cfg.Store.Driver == config.StoreDriverRedis || cfg.Store.Notifications {
		redisClient = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redisClient.Close()
	}

	var backend session.Backend
	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		backend = session.NewRedisBackend(redisClient)
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrationsDir, logger); err != nil {
				return err
			}
		}
		backend = session.NewPostgresBackend(pg.PoolHandle())
	default:
		logger.Warn("memory store selected; sessions are not shared across processes")
		backend = session.NewMemoryBackend()
	}

	var dispatcher events.Dispatcher = events.NewInMemoryDispatcher()
	if cfg.Store.Notifications {
		bridge := events.NewRedisDispatcher(redisClient, cfg.Store.Channel, logger.Named("events"))
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event bridge stopped", zap.Error(err))
			}
		}()
		dispatcher = bridge
	}

	stopAudit := worker.StartAuditWorker(service.NewAuditService(dispatcher, logger.Named("audit")))
	defer stopAudit()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := httptransport.NewServer(*cfg, httptransport.ServerDependencies{
		Lifetime:   ctx,
		Backend:    backend,
		Dispatcher: dispatcher,
		Logger:     logger,
		Registry:   registry,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(ctx, logger)

	// event streams and the redis bridge stop before connections drain
	cancel()
	return app.ShutdownWithTimeout(shutdownTimeout)
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
