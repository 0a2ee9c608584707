package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/V4T54L/event-counter/internal/adapter/repository/postgres"
	"github.com/V4T54L/event-counter/internal/pkg/config"
	"github.com/V4T54L/event-counter/internal/pkg/database"
	"github.com/V4T54L/event-counter/internal/pkg/logger"
)

func main() {
	printOnly := flag.Bool("print", false, "Print the schema instead of applying it")
	flag.Parse()

	if *printOnly {
		fmt.Print(postgres.Schema())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.StoreBackend != config.StoreBackendPostgres {
		slog.Error("migrations only apply to the postgres store", "store", cfg.StoreBackend)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenPostgres(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to postgres")

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("schema applied")
}
