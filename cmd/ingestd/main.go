package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"crashfeed/internal/config"
	"crashfeed/internal/enrich"
	"crashfeed/internal/normalize"
	"crashfeed/internal/publisher"
	"crashfeed/internal/scheduler"
	"crashfeed/internal/server"
	"crashfeed/internal/service"
	"crashfeed/internal/source/googlenews"
	"crashfeed/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ publisher
	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	// Initialize stores
	incidentStore := postgres.NewIncidentStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Initialize Google News source
	newsSource := googlenews.New(googlenews.Config{
		BaseURL:        cfg.Feed.BaseURL,
		Language:       cfg.Feed.Language,
		Country:        cfg.Feed.Country,
		Timeout:        cfg.Feed.Timeout,
		MaxAttempts:    cfg.Feed.Retry.MaxAttempts,
		InitialBackoff: cfg.Feed.Retry.InitialBackoff,
		MaxBackoff:     cfg.Feed.Retry.MaxBackoff,
	}, logger)

	// The fact extractor is optional: without a base URL, incidents are
	// ingested without enrichment.
	var extractor service.FactExtractor
	if cfg.Enrich.BaseURL != "" {
		extractor = enrich.New(enrich.Config{
			BaseURL: cfg.Enrich.BaseURL,
			APIKey:  cfg.Enrich.APIKey,
			Timeout: cfg.Enrich.Timeout,
		}, logger)
	}

	normalizer := normalize.New(
		cfg.Ingest.MinSummaryLen,
		normalize.NewGazetteer(normalize.FromConfig(cfg.Ingest.Metros)),
	)

	ingestService := service.NewIngestService(
		newsSource,
		incidentStore,
		txManager,
		rabbitMQ,
		extractor,
		normalizer,
		logger,
		cfg.Ingest,
	)

	sched := scheduler.NewScheduler(ingestService, cfg.Ingest.Interval, cfg.Ingest.RunTimeout, logger)

	srv := server.New(server.Config{
		Environment: cfg.Environment,
		CronSecret:  cfg.HTTP.CronSecret,
	}, ingestService, db, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("starting incident ingester",
		"source", newsSource.Name(),
		"interval", cfg.Ingest.Interval,
		"queries", len(cfg.Ingest.Queries),
		"batch_size", cfg.Ingest.BatchSize,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
