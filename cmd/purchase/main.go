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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"propflow/internal/checkout"
	checkoutapi "propflow/internal/checkout/api"
	"propflow/internal/common/cache"
	"propflow/internal/common/database"
	"propflow/internal/common/metrics"
	"propflow/internal/common/middleware"
	"propflow/internal/common/nats"
	"propflow/internal/property"
	"propflow/internal/purchase"
	purchaseapi "propflow/internal/purchase/api"
	"propflow/internal/purchase/client"
)

// Config holds service configuration
type Config struct {
	Port        int      `envconfig:"PORT" default:"8090"`
	Environment string   `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string   `envconfig:"LOG_FORMAT" default:"json"`
	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	ProcessingDelay time.Duration `envconfig:"PURCHASE_PROCESSING_DELAY" default:"2s"`
	CompletionDelay time.Duration `envconfig:"PURCHASE_COMPLETION_DELAY" default:"5s"`
	FlowIdleTTL     time.Duration `envconfig:"PURCHASE_FLOW_IDLE_TTL" default:"30m"`
	SweepInterval   time.Duration `envconfig:"PURCHASE_FLOW_SWEEP_INTERVAL" default:"1m"`

	Database database.Config
	NATS     nats.Config
	Redis    cache.Config
	Backend  client.Config
}

func main() {
	// Load configuration
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to process config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	// Create context that listens for shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Run migrations
	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(cfg.Database.URL, logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Connect to database
	db, err := database.New(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to NATS
	natsClient, err := nats.New(ctx, cfg.NATS, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	if err := natsClient.EnsureStream(ctx, cfg.NATS.Stream); err != nil {
		logger.Error("failed to ensure event stream", "error", err)
		os.Exit(1)
	}
	publisher := nats.NewPublisher(natsClient, logger)

	// Connect to Redis
	redisClient, err := cache.New(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Metrics
	purchaseMetrics, err := metrics.NewPurchaseMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Create stores and services
	propertyStore := property.NewPostgresStore(db)
	checkoutService := checkout.NewService(checkout.NewPostgresStore(db), db, propertyStore, publisher, logger)

	var backend purchase.Backend = checkoutService
	if cfg.Backend.BaseURL != "" {
		backend = client.New(cfg.Backend, logger)
		logger.Info("using remote checkout backend", "url", cfg.Backend.BaseURL)
	}

	orchestrator := purchase.NewOrchestrator(backend, logger, purchase.WithProcessingDelay(cfg.ProcessingDelay))
	notifier := purchase.MultiNotifier{
		purchase.LogNotifier{Logger: logger},
		purchase.EventNotifier{Publisher: publisher},
	}
	registry := purchase.NewRegistry(propertyStore, orchestrator, notifier, purchaseMetrics, publisher, logger,
		purchase.RegistryConfig{CompletionDelay: cfg.CompletionDelay, IdleTTL: cfg.FlowIdleTTL})
	go registry.RunSweeper(ctx, cfg.SweepInterval)

	// Create handlers
	propertyHandler := property.NewHandler(propertyStore)
	checkoutHandler := checkoutapi.NewHandler(checkoutService)
	purchaseHandler := purchaseapi.NewHandler(registry)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(chimw.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready check
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := natsClient.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	idempotent := middleware.Idempotency(
		cache.NewIdempotencyStore(redisClient, "propflow:idempotency:"),
		cfg.Redis.IdempotencyTTL,
		logger,
	)
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/properties", propertyHandler.Routes())
		r.Group(func(r chi.Router) {
			r.Use(idempotent)
			r.Mount("/purchase-flows", purchaseHandler.Routes())
			r.Mount("/", checkoutHandler.Routes())
		})
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting purchase service",
			"port", cfg.Port,
			"environment", cfg.Environment,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Let in-flight payments finish before the backends go away
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Error("purchase flows did not finish", "error", err, "open_flows", registry.Len())
	}

	logger.Info("server stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
