package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"retailcast/internal/amqp"
	"retailcast/internal/auth"
	"retailcast/internal/backend"
	"retailcast/internal/cache"
	"retailcast/internal/cli"
	"retailcast/internal/export"
	"retailcast/internal/geo"
	apphttp "retailcast/internal/http"
	applog "retailcast/internal/log"
	gsheet "retailcast/internal/sheets/google"
)

const (
	geocodeCacheSize = 1000
	geocodeCacheTTL  = 24 * time.Hour
	cleanupInterval  = 5 * time.Minute
	shutdownTimeout  = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger("info", applog.ComponentApp), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)
	logger.Info("Starting retailcast", applog.FieldOperation, applog.OpStartup, "port", cfg.Port, applog.FieldBackend, cfg.UserBackend)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	// Users and the export log
	backendOpts, err := backend.OptionsFrom(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	stores, err := backend.Open(ctx, backendOpts, logger.WithComponent(applog.ComponentStorage).Slog())
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, applog.FieldBackend, cfg.UserBackend)
	}

	authSvc := auth.NewService(stores.Users, auth.WithLogger(logger.WithComponent(applog.ComponentAuth).Slog()))
	if cfg.SeedUsersFile != "" {
		n, err := authSvc.SeedFromFile(ctx, cfg.SeedUsersFile)
		if err != nil {
			cli.Fatal(logger, "Failed to seed users", err, applog.FieldFile, cfg.SeedUsersFile)
		}
		logger.Info("Seeded users", "created", n, applog.FieldFile, cfg.SeedUsersFile)
	}

	sessions := auth.NewSessions(cfg.MaxSessions, cfg.SessionTTL)
	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	caches.Register(sessions.Cache())

	// Geocoding results are shared through Redis when configured.
	var geoStore cache.Store
	if cfg.RedisURL != "" {
		geoStore, err = cache.NewRedisStore(ctx, cfg.RedisURL, "retailcast:geo:", geocodeCacheTTL)
		if err != nil {
			cli.Fatal(logger, "Failed to connect to Redis", err)
		}
		logger.Info("Geocode cache backed by Redis")
	} else {
		local := cache.NewLocalStore(geocodeCacheSize, geocodeCacheTTL)
		caches.Register(local)
		geoStore = local
	}
	geocoder := geo.New(geo.Config{
		BaseURL:   cfg.GeocoderURL,
		Country:   cfg.GeocoderCountry,
		UserAgent: cfg.GeocoderUserAgent,
		Timeout:   cfg.GeocoderTimeout,
	}, geoStore, logger.WithComponent(applog.ComponentGeo).Slog())

	// Exports are queued when a broker is configured, written inline otherwise.
	exporter, err := export.NewExporter(cfg.ExportDir)
	if err != nil {
		cli.Fatal(logger, "Failed to prepare export directory", err, "dir", cfg.ExportDir)
	}
	var publisher export.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, exports will be written inline", applog.FieldError, err)
		} else {
			publisher = amqpClient
			logger.Info("Export queue enabled", applog.FieldExchange, cfg.AMQPExchange, applog.FieldQueue, cfg.AMQPQueue)
		}
	}
	exports := export.NewService(exporter, publisher, stores.Exports, logger.WithComponent(applog.ComponentExport).Slog())

	deps := apphttp.Deps{
		Auth:      authSvc,
		Sessions:  sessions,
		Geocoder:  geocoder,
		Exports:   exports,
		ExportDir: exporter.Dir(),
		ReadyChecks: map[string]func(context.Context) error{
			"users": stores.Ready,
		},
		Logger: logger,
	}
	if cfg.GoogleSpreadsheetID != "" {
		sheetCfg := gsheet.ConfigFromEnv()
		sheetCfg.SpreadsheetID = cfg.GoogleSpreadsheetID
		sheetCfg.Range = cfg.GoogleSheetRange
		source, err := gsheet.NewSource(ctx, sheetCfg)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets source", err)
		}
		deps.Sheets = source
		logger.Info("Google Sheets source enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		SecureCookies:      cfg.SecureCookies,
	}, deps)
	if err != nil {
		cli.Fatal(logger, "Failed to build HTTP server", err)
	}

	caches.StartCleanup(cleanupInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		return cli.RunCleanup(logger, shutdownTimeout,
			srv.Shutdown,
			func(context.Context) error { caches.Stop(); return nil },
			func(context.Context) error {
				if amqpClient != nil {
					return amqpClient.Close()
				}
				return nil
			},
			func(context.Context) error { return geoStore.Close() },
			func(context.Context) error { return stores.Close() },
		)
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}
