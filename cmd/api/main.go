package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardd-labs/cardd-backend/api/routes"
	"github.com/cardd-labs/cardd-backend/internal/agents"
	"github.com/cardd-labs/cardd-backend/internal/dispatch"
	"github.com/cardd-labs/cardd-backend/internal/estimation"
	"github.com/cardd-labs/cardd-backend/internal/notify"
	"github.com/cardd-labs/cardd-backend/internal/requests"
	"github.com/cardd-labs/cardd-backend/internal/users"
	"github.com/cardd-labs/cardd-backend/pkg/config"
	"github.com/cardd-labs/cardd-backend/pkg/db"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
	"github.com/cardd-labs/cardd-backend/pkg/metrics"
	"github.com/cardd-labs/cardd-backend/pkg/migrate"
	"github.com/cardd-labs/cardd-backend/pkg/redis"
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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	registry := prometheus.NewRegistry()
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	bus, err := notify.NewBus(redisClient, logg, dispatchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification bus", err)
		os.Exit(1)
	}
	streamer, err := notify.NewStreamer(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification streamer", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	agentsRepo := agents.NewRepository(dbClient.DB())
	requestsRepo := requests.NewRepository(dbClient.DB())

	dispatchService, err := dispatch.NewService(
		requestsRepo, agentsRepo, usersRepo, dbClient, bus, logg, dispatchMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}
	requestsService, err := requests.NewService(requestsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create requests service", err)
		os.Exit(1)
	}
	agentsService, err := agents.NewService(agentsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create agents service", err)
		os.Exit(1)
	}
	estimator := estimation.NewRateTable(cfg.Estimation)

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
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			dispatchService, requestsService, agentsService,
			estimator, streamer, registry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
