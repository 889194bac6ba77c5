package main

import (
	"context"
	"errors"
	"time"

	"retailcast/internal/amqp"
	"retailcast/internal/backend"
	"retailcast/internal/cache"
	"retailcast/internal/cli"
	"retailcast/internal/export"
	applog "retailcast/internal/log"
	"retailcast/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger("info", applog.ComponentWorker), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)
	logger.Info("Starting retailcast-worker", applog.FieldOperation, applog.OpStartup)

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "AMQP_URL is required for the export worker", errors.New("no broker configured"))
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendOpts, err := backend.OptionsFrom(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	stores, err := backend.Open(ctx, backendOpts, logger.WithComponent(applog.ComponentStorage).Slog())
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, applog.FieldBackend, cfg.UserBackend)
	}

	exporter, err := export.NewExporter(cfg.ExportDir)
	if err != nil {
		cli.Fatal(logger, "Failed to prepare export directory", err, "dir", cfg.ExportDir)
	}
	// The worker writes files itself, so it gets no publisher.
	writer := export.NewService(exporter, nil, stores.Exports, logger.WithComponent(applog.ComponentExport).Slog())
	exportWorker := worker.NewExportWorker(writer, logger.Slog())

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	caches.Register(exportWorker.Cache())
	caches.StartCleanup(10 * time.Minute)

	logger.Info("Consuming export requests", applog.FieldQueue, cfg.AMQPQueue, "export_dir", exporter.Dir())
	if err := amqpClient.ConsumeExportRequests(ctx, exportWorker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
	}

	_ = cli.RunCleanup(logger, 10*time.Second,
		func(context.Context) error { caches.Stop(); return nil },
		func(context.Context) error { return amqpClient.Close() },
		func(context.Context) error { return stores.Close() },
	)
	logger.Info("Worker stopped")
}
