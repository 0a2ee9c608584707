package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/event-counter/internal/adapter/api"
	"github.com/V4T54L/event-counter/internal/adapter/api/handler"
	"github.com/V4T54L/event-counter/internal/adapter/metrics"
	"github.com/V4T54L/event-counter/internal/adapter/pii"
	"github.com/V4T54L/event-counter/internal/adapter/repository/memory"
	"github.com/V4T54L/event-counter/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/event-counter/internal/adapter/repository/redis"
	"github.com/V4T54L/event-counter/internal/domain"
	"github.com/V4T54L/event-counter/internal/pkg/config"
	"github.com/V4T54L/event-counter/internal/pkg/database"
	"github.com/V4T54L/event-counter/internal/pkg/logger"
	"github.com/V4T54L/event-counter/internal/pkg/snowflake"
	"github.com/V4T54L/event-counter/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Identifier Generator ---
	ids, err := snowflake.New(snowflake.Config{
		WorkerID:         cfg.WorkerID,
		ProcessID:        cfg.ProcessID,
		EpochStartMillis: cfg.EpochStartMillis,
	}, snowflake.WithExhaustionHook(m.SequenceExhausted.Inc))
	if err != nil {
		logger.Error("invalid snowflake configuration", "error", err)
		os.Exit(1)
	}

	// --- Event Store ---
	checks := make(map[string]handler.HealthCheck)
	var repo domain.EventRepository
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory event store, events are lost on restart")
		repo = memory.NewEventRepository()
	default:
		db, err := database.OpenPostgres(ctx, cfg)
		if err != nil {
			logger.Error("failed to initialize postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		m.RegisterDB(db, "events")
		checks["postgres"] = db.PingContext

		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, db); err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
			logger.Info("database schema is up to date")
		}
		repo = postgres.NewEventRepository(db, logger)
	}

	// --- Count Cache ---
	var queryOpts []usecase.QueryOption
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, count cache will retry per request", "error", err)
		}
		cache := redisrepo.NewCountCache(redisClient, cfg.CountCacheTTL, logger)
		checks["redis"] = cache.Ping
		queryOpts = append(queryOpts, usecase.WithCountCache(cache, cfg.CountCacheSettle))
	} else if cfg.CountCacheMaxEntries > 0 {
		cache := memory.NewCountCache(cfg.CountCacheTTL, cfg.CountCacheMaxEntries)
		queryOpts = append(queryOpts, usecase.WithCountCache(cache, cfg.CountCacheSettle))
	}

	// --- Use Cases ---
	redactor := pii.NewRedactor(cfg.RedactTagKeys, logger)
	ingestUseCase := usecase.NewIngestEventUseCase(repo, ids, redactor, m, logger)
	queryUseCase := usecase.NewQueryEventsUseCase(repo, ids, m, logger, queryOpts...)

	// --- Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.NewAdminRouter(handler.NewAdminHandler(ids, checks, logger), reg),
	}
	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Events Server ---
	rateBroker := handler.NewRateBroker(ctx, logger, time.Second)
	router := api.NewRouter(logger, cfg.MaxEventSize, api.Handlers{
		Events: handler.NewEventHandler(ingestUseCase, logger, m, rateBroker, cfg.MaxEventSize),
		Query:  handler.NewQueryHandler(queryUseCase, logger),
		Rate:   rateBroker,
	})
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting events server", "addr", server.Addr,
			"worker_id", cfg.WorkerID, "process_id", cfg.ProcessID, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("events server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("events server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
