package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gustavo-camilo/dealer-copilot/internal/competitor"
	"github.com/gustavo-camilo/dealer-copilot/internal/config"
	"github.com/gustavo-camilo/dealer-copilot/internal/extractor"
	"github.com/gustavo-camilo/dealer-copilot/internal/fetcher"
	"github.com/gustavo-camilo/dealer-copilot/internal/handler"
	"github.com/gustavo-camilo/dealer-copilot/internal/htmlparser"
	"github.com/gustavo-camilo/dealer-copilot/internal/listingdate"
	"github.com/gustavo-camilo/dealer-copilot/internal/middleware"
	"github.com/gustavo-camilo/dealer-copilot/internal/pipeline"
	"github.com/gustavo-camilo/dealer-copilot/internal/realtime"
	"github.com/gustavo-camilo/dealer-copilot/internal/reconcile"
	"github.com/gustavo-camilo/dealer-copilot/internal/scheduler"
	"github.com/gustavo-camilo/dealer-copilot/internal/sitemap"
	"github.com/gustavo-camilo/dealer-copilot/internal/store"
	"github.com/gustavo-camilo/dealer-copilot/internal/tracing"
	"github.com/gustavo-camilo/dealer-copilot/internal/vindecode"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Error("failed to init sentry", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Initialize tracing
	ctx := context.Background()
	tracingShutdown, err := tracing.Init(ctx, "dealer-copilot", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Warn("failed to init tracing", slog.String("error", err.Error()))
	} else {
		defer tracingShutdown(ctx)
	}

	// Apply schema migrations
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Connect to database
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to parse database config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dbConfig.MaxConns = int32(cfg.DBMaxConns)
	dbConfig.MinConns = int32(cfg.DBMinConns)
	dbConfig.MaxConnLifetime = cfg.DBMaxConnLife

	db, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		logger.Error("failed to ping database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("database_connected")

	st := store.New(db, logger)

	// Initialize SSE broker
	broker := realtime.NewBroker(logger)
	broker.Start()
	defer broker.Stop()

	// Wire the pipeline
	fetch := fetcher.New(logger, fetcher.Options{
		MaxRetries:   cfg.FetchMaxRetries,
		InitialDelay: cfg.FetchInitialDelay,
		MaxDelay:     cfg.FetchMaxDelay,
		Timeout:      cfg.FetchTimeout,
		RateLimit:    cfg.FetchRateLimit,
		Validate:     true,
	})
	parser := htmlparser.New(logger)
	extract := extractor.New(extractor.Config{
		PrimaryURL:   cfg.ExtractorPrimaryURL,
		SecondaryURL: cfg.ExtractorSecondaryURL,
		Timeout:      cfg.ExtractorTimeout,
	}, fetch, parser, logger)
	sitemaps := sitemap.New(fetch, st, logger, cfg.SitemapTTL, cfg.SitemapHeadTimeout)
	vins := vindecode.New(cfg.VINDecodeURL, cfg.VINDecodeTimeout, logger)
	dates := listingdate.New(logger)

	engine := reconcile.NewEngine(st, dates, logger,
		reconcile.WithSoldAbsenceDays(cfg.SoldAbsenceDays),
		reconcile.WithBroadcaster(broker),
	)

	pipe := pipeline.New(st, sitemaps, fetch, extract, parser, vins, engine, broker, logger,
		pipeline.Config{
			DetailConcurrency: cfg.DetailConcurrency,
			HeadTimeout:       cfg.SitemapHeadTimeout,
		})

	dispatcher := scheduler.New(st, pipe, logger, cfg.WallClockBudget)
	aggregator := competitor.New(extract, st, logger)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(db)
	scrapeHandler := handler.NewScrapeHandler(dispatcher, logger)
	competitorHandler := handler.NewCompetitorHandler(aggregator, st, logger)
	inventoryHandler := handler.NewInventoryHandler(st, logger)
	eventsHandler := handler.NewEventsHandler(broker, logger, cfg.SSEKeepaliveInterval)
	vinHandler := handler.NewVINHandler(logger, vins)
	debugHandler := handler.NewDebugHandler(broker, db, logger)

	// Initialize auth middleware
	serviceAuth := middleware.NewServiceAuth(logger, cfg.ScrapeAuthSecret)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)

	// Metrics endpoint
	r.Handle(cfg.MetricsPath, promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Read views for dashboards
		r.Get("/tenants/{id}/inventory", inventoryHandler.ListInventory)
		r.Get("/tenants/{id}/sales", inventoryHandler.ListSales)
		r.Get("/tenants/{id}/snapshots", inventoryHandler.ListSnapshots)
		r.Get("/tenants/{id}/competitors", competitorHandler.List)

		// SSE scrape progress
		r.Get("/events", eventsHandler.Stream)

		// VIN decode for manual lookups
		r.Post("/vin/decode", vinHandler.DecodeVIN)

		// Invocation surface, gated by the service token
		r.Group(func(r chi.Router) {
			r.Use(serviceAuth.Middleware)
			r.Post("/scrape", scrapeHandler.Run)
			r.Post("/competitors/scan", competitorHandler.Scan)
		})
	})

	// Debug endpoints (development only)
	if cfg.DebugEndpointsEnabled {
		r.Route("/debug", func(r chi.Router) {
			r.Get("/scrape-stats", debugHandler.ScrapeStats)
		})
	}

	// Create server
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Scrape invocations run up to the dispatcher budget and SSE
		// streams stay open indefinitely, so no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server_starting",
			slog.Int("port", cfg.Port),
			slog.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", slog.String("error", err.Error()))
	}

	logger.Info("server_stopped")
}
