package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/backend/api"
	"github.com/gilchrisn/graph-bundling-service/backend/cache"
	"github.com/gilchrisn/graph-bundling-service/backend/config"
	"github.com/gilchrisn/graph-bundling-service/backend/service"
	"github.com/gilchrisn/graph-bundling-service/backend/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := config.SetupLogging(cfg.Logging); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}

	log.Info().Msg("Starting graph bundling server")
	log.Info().
		Str("address", cfg.Server.Address).
		Int("max_workers", cfg.Jobs.MaxWorkers).
		Dur("job_timeout", cfg.Jobs.JobTimeout).
		Str("database", cfg.Storage.DatabasePath).
		Msg("Configuration loaded")

	store, err := storage.New(cfg.Storage.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open dataset store")
	}
	defer store.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	renderCache, err := cache.New(startCtx, cfg.Cache)
	cancelStart()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize render cache")
	}
	defer renderCache.Close()

	// Initialize services in dependency order
	datasetService := service.NewDatasetService(store)
	jobService := service.NewJobService(datasetService, cfg.Jobs, cfg.Bundling)
	renderService := service.NewRenderService(datasetService, jobService, renderCache)

	log.Info().Msg("Services initialized")

	handlers := api.NewHandlers(datasetService, jobService, renderService, cfg.Storage.MaxUploadSize)

	router := mux.NewRouter()
	api.SetupRoutes(router, handlers)

	// Add middleware stack
	router.Use(api.LoggingMiddleware)
	router.Use(api.CORSMiddleware)
	router.Use(api.RecoveryMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().
			Str("address", cfg.Server.Address).
			Msg("HTTP server starting")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	jobService.Close()

	log.Info().Msg("Server shutdown complete")
}
