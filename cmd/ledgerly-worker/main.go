package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledgerly/internal/backend"
	"ledgerly/internal/cli"
	applog "ledgerly/internal/log"
	"ledgerly/internal/services"
	"ledgerly/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentMirror)

	logger.Info("Starting ledgerly-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.SQLiteBackend {
		logger.Error("The worker mirrors into SQLite and cannot also read from it", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer result.Close()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	exporter := cli.InitExporter(ctx, logger, cfg)

	mirror := services.NewMirrorService(result.Store, repo, exporter, nil, services.MirrorConfig{
		Interval: cfg.MirrorInterval,
		Timeout:  cfg.BackendTimeout * 6,
	})
	mw := worker.NewMirrorWorker(mirror)

	// A failed startup run is retried by the periodic loop.
	if err := mw.StartupSync(ctx); err != nil {
		logger.Error("Startup mirror failed", "error", err)
	}

	if err := mirror.Start(ctx); err != nil {
		logger.Error("Failed to start mirror service", "error", err)
		os.Exit(1)
	}

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
		go func() {
			err := amqpClient.ConsumeWithReconnect(ctx, mw.HandleLedgerChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption stopped", "error", err)
			}
		}()
	} else {
		logger.Info("Consuming no events, mirroring on the interval only", "interval", cfg.MirrorInterval)
	}

	cli.WaitForShutdown(ctx, done)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mirror.Stop(stopCtx); err != nil {
		logger.Warn("Mirror service did not stop in time", "error", err)
	}
	logger.Info("Worker stopped")
}
