// viptier-server is the single HTTP binary: admin rules API, storefront
// proxy check endpoint, login analytics, health checks, and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mfigueredo/viptier/internal/accesslog"
	"github.com/mfigueredo/viptier/internal/cache"
	"github.com/mfigueredo/viptier/internal/config"
	"github.com/mfigueredo/viptier/internal/database"
	"github.com/mfigueredo/viptier/internal/httpapi"
	"github.com/mfigueredo/viptier/internal/logger"
	"github.com/mfigueredo/viptier/internal/platform"
	"github.com/mfigueredo/viptier/internal/provision"
	"github.com/mfigueredo/viptier/internal/rulestore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; absence of a .env file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Dependencies ---

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.Redis.IsConfigured() {
		redisClient, err = cache.NewRedisClient(logger.WithContext(ctx, log), &cfg.Redis)
		if err != nil {
			// The rule cache degrades to L1-only; classification still works.
			log.Warn("redis unavailable, running with in-memory cache only",
				slog.String("error", err.Error()))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	adminClient := platform.NewGraphQLClient(&cfg.Platform, log)

	// The shop entity owns the rule set metafield; resolve its id once.
	ownerID, err := adminClient.ShopID(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve shop id: %w", err)
	}
	log.Info("resolved metafield owner", slog.String("owner_id", ownerID))

	rulesCache, err := cache.NewRulesCache(redisClient, cfg.Redis.L1Capacity, cfg.Redis.L1TTL, cfg.Redis.RulesTTL, log)
	if err != nil {
		return fmt.Errorf("failed to build rule cache: %w", err)
	}
	defer rulesCache.Close()

	ruleStore := rulestore.New(adminClient, cfg.Platform.MetafieldNamespace, cfg.Platform.MetafieldKey, log, rulesCache)
	intentStore := provision.NewPostgresIntentStore(pool)
	provisioner := provision.New(adminClient, ruleStore, intentStore, cfg.Platform.ShopDomain, log)

	logStore := accesslog.NewPostgresLogStore(pool)
	sink := accesslog.NewSink(logStore, log, cfg.AccessLog.QueueSize, cfg.AccessLog.WriteTimeout)
	defer sink.Close()

	readyProbes := map[string]httpapi.Probe{
		"postgres": pool.Ping,
	}
	if redisClient != nil {
		readyProbes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	api := httpapi.NewAPI(httpapi.Deps{
		Rules:       ruleStore,
		Provisioner: provisioner,
		Customers:   adminClient,
		Sink:        sink,
		Logs:        logStore,
		RulesCache:  rulesCache,
		OwnerID:     ownerID,
		Shop:        cfg.Platform.ShopDomain,
		IdentityKey: cfg.AccessLog.IdentityKey,
		ReadyProbes: readyProbes,
	})

	// --- HTTP server ---

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.Router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", slog.String("addr", srv.Addr))

		var err error
		if cfg.Server.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	log.Info("server stopped cleanly")
	return nil
}
