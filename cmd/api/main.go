package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/halcyonretail/storefront-sync/api/routes"
	"github.com/halcyonretail/storefront-sync/internal/gateway"
	"github.com/halcyonretail/storefront-sync/internal/shopper"
	"github.com/halcyonretail/storefront-sync/pkg/config"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
	"github.com/halcyonretail/storefront-sync/pkg/metrics"
	pkgredis "github.com/halcyonretail/storefront-sync/pkg/redis"
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

	var (
		redisP    pkgredis.Pinger
		idemStore pkgredis.IdempotencyStore
	)
	if cfg.Redis.Enabled() {
		redisClient, err := pkgredis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisP = redisClient
		idemStore = redisClient
	}

	gatewayClient, err := gateway.New(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to build store gateway", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	syncMetrics := metrics.NewSyncMetrics(promRegistry)

	registry, err := shopper.NewRegistry(shopper.RegistryParams{
		Gateway:        gatewayClient,
		Logger:         logg,
		Metrics:        syncMetrics,
		DebounceWindow: cfg.Wishlist.DebounceWindow,
		IdleTTL:        cfg.Shopper.IdleTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build shopper registry", err)
		os.Exit(1)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go registry.Run(sweepCtx, cfg.Shopper.SweepInterval)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"gateway": cfg.Gateway.BaseURL,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, redisP, idemStore, registry, promRegistry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
