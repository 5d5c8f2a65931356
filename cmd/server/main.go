package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agri-dashboard/internal/cache"
	"agri-dashboard/internal/config"
	"agri-dashboard/internal/forecast"
	"agri-dashboard/internal/handlers"
	"agri-dashboard/internal/repository"
	"agri-dashboard/internal/services"
	"agri-dashboard/pkg/database"
	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("agri-dashboard-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting agricultural dashboard API server", logging.Fields{
		"version":       version,
		"server_host":   cfg.Server.Host,
		"server_port":   cfg.Server.Port,
		"db_host":       cfg.Database.Host,
		"db_name":       cfg.Database.Database,
		"cache_enabled": cfg.Cache.Enabled(),
		"auth_enabled":  cfg.Auth.Enabled(),
	})

	metricsCollector := metrics.NewCollector("agri_dashboard", prometheus.DefaultRegisterer)

	db, err := database.NewPostgresDB(cfg.Database.PostgresConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	responseCache := cache.Disabled(logger, metricsCollector)
	if cfg.Cache.Enabled() {
		responseCache, err = cache.New(cache.Options{
			Addr:           cfg.Cache.Addr,
			Password:       cfg.Cache.Password,
			DB:             cfg.Cache.DB,
			TTL:            cfg.Cache.TTL,
			ConnectTimeout: 10 * time.Second,
		}, logger, metricsCollector)
		if err != nil {
			logger.Warn(ctx, "[CACHE_UNAVAILABLE] Serving without response cache", logging.Fields{
				"addr":  cfg.Cache.Addr,
				"error": err.Error(),
			})
		}
	}
	defer responseCache.Close()

	// Repositories
	aggregateRepo := repository.NewAggregateRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db, logger)

	// Forecasting
	var random forecast.RandomSource
	if cfg.Forecast.Seed != nil {
		random = forecast.SeededSource(*cfg.Forecast.Seed)
		logger.Info(ctx, "[FORECAST_SEEDED] Forecast noise uses a fixed seed", logging.Fields{
			"seed": *cfg.Forecast.Seed,
		})
	}
	generator := forecast.NewGenerator(aggregateRepo, ledgerRepo, random, logger, metricsCollector)

	dashboardService := services.NewDashboardService(aggregateRepo, ledgerRepo, generator, logger)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, responseCache, time.Now, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID)

	var apiMiddleware []mux.MiddlewareFunc
	if cfg.Auth.Enabled() {
		apiMiddleware = append(apiMiddleware, handlers.BearerAuth(cfg.Auth.JWTSecret, logger, metricsCollector))
	}
	dashboardHandler.RegisterRoutes(router, apiMiddleware...)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
