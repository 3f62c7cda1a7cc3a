package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ledgerly/internal/backend"
	"ledgerly/internal/cache"
	"ledgerly/internal/cli"
	apphttp "ledgerly/internal/http"
	applog "ledgerly/internal/log"
	"ledgerly/internal/metrics"
	"ledgerly/internal/middleware/ratelimit"
	"ledgerly/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The server owns its memory store, so writes survive a restart.
	backendCfg.Persist = backendCfg.Type == backend.MemoryBackend

	ctx := context.Background()
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusMetrics(reg)

	var events services.EventPublisher
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		events = amqpClient
	}

	svc := services.NewLedgerService(result.Store, events, rec, services.LedgerServiceConfig{
		SnapshotTTL:    cfg.SnapshotTTL,
		BackendTimeout: cfg.BackendTimeout,
	})

	caches := cache.NewManager(logger.Logger)
	for _, c := range svc.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(time.Minute)

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerSecond = cfg.RateLimitRPS
	rl.Burst = cfg.RateLimitBurst

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:         logger.WithComponent(applog.ComponentHTTP),
		Recorder:       rec,
		Gatherer:       reg,
		RateLimit:      rl,
		ReadyTimeout:   cfg.BackendTimeout,
		BackendHealth:  result.Health,
		TrustedProxies: cfg.TrustedProxies,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting ledgerly server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"writable", svc.Writable(),
		"events", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
