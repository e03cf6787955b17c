// viptier-sweeper is the background worker that reconciles provisioning
// sagas left dangling by crashes or failed compensations.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mfigueredo/viptier/internal/config"
	"github.com/mfigueredo/viptier/internal/database"
	"github.com/mfigueredo/viptier/internal/logger"
	"github.com/mfigueredo/viptier/internal/platform"
	"github.com/mfigueredo/viptier/internal/provision"
	"github.com/mfigueredo/viptier/internal/sweeper"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sweeper exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	adminClient := platform.NewGraphQLClient(&cfg.Platform, log)
	intentStore := provision.NewPostgresIntentStore(pool)

	svc := sweeper.New(log, sweeper.Config{
		Interval:  cfg.Sweeper.Interval,
		MinAge:    cfg.Sweeper.MinAge,
		BatchSize: cfg.Sweeper.BatchSize,
	}, intentStore, adminClient)

	return svc.Run(ctx)
}
