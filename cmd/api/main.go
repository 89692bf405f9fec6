package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mora-interactive/prizevault-backend/api/routes"
	"github.com/mora-interactive/prizevault-backend/internal/containers"
	"github.com/mora-interactive/prizevault-backend/internal/draw"
	"github.com/mora-interactive/prizevault-backend/internal/health"
	"github.com/mora-interactive/prizevault-backend/internal/ledger"
	"github.com/mora-interactive/prizevault-backend/internal/overrides"
	"github.com/mora-interactive/prizevault-backend/internal/pool"
	"github.com/mora-interactive/prizevault-backend/internal/probability"
	"github.com/mora-interactive/prizevault-backend/pkg/config"
	"github.com/mora-interactive/prizevault-backend/pkg/db"
	"github.com/mora-interactive/prizevault-backend/pkg/logger"
	"github.com/mora-interactive/prizevault-backend/pkg/metrics"
	"github.com/mora-interactive/prizevault-backend/pkg/migrate"
	"github.com/mora-interactive/prizevault-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	containerRepo := containers.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)
	poolRepo := pool.NewRepository(gormDB)
	overrideRepo := overrides.NewRepository(gormDB)
	decisionRepo := draw.NewDecisionRepository(gormDB)

	containerService, err := containers.NewService(containerRepo, poolRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create container service", err)
		os.Exit(1)
	}

	overrideService, err := overrides.NewService(overrides.ServiceParams{Repo: overrideRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create override service", err)
		os.Exit(1)
	}

	healthService, err := health.NewService(containerRepo, ledgerRepo, poolRepo, cfg.Engine, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create health service", err)
		os.Exit(1)
	}

	drawService, err := draw.NewService(
		dbClient,
		containerRepo,
		ledgerRepo,
		poolRepo,
		overrideRepo,
		decisionRepo,
		probability.New(cfg.Engine),
		metrics.NewDrawMetrics(prometheus.DefaultRegisterer),
		logg,
		cfg.Engine,
		nil,
		nil,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create draw service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, containerService, drawService, overrideService, healthService, decisionRepo),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
