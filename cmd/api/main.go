package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/shareledger/internal/api"
	"github.com/timmy/shareledger/internal/auth"
	"github.com/timmy/shareledger/internal/config"
	"github.com/timmy/shareledger/internal/jobstore"
	"github.com/timmy/shareledger/internal/logger"
	"github.com/timmy/shareledger/internal/metrics"
	"github.com/timmy/shareledger/internal/repository"
	"github.com/timmy/shareledger/internal/service"
	"github.com/timmy/shareledger/internal/storage"
	"gorm.io/gorm"
)

func main() {
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	if cfg.Auth.JWTSecret == "" {
		appLogger.Fatal("auth.jwt_secret (JWT_SECRET) is required")
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize token verification")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to access database pool")
	}
	defer sqlDB.Close()

	ctx := appLogger.WithContext(context.Background())

	objectStorage, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	jobs := newJobStore(cfg, db)
	positions := repository.NewPositionRepository(db, cfg.Ingest.InsertChunkSize)
	m := metrics.New()

	ingestService := service.NewIngestService(objectStorage, positions, appLogger, &service.IngestConfig{
		MaxBytes: cfg.Server.MaxUploadBytes,
	})
	queue := service.NewTaskQueue(jobs, ingestService, m, appLogger, service.QueueConfig{
		Workers:         cfg.Queue.Workers,
		StuckJobTimeout: cfg.Queue.StuckJobTimeout,
		ReapInterval:    cfg.Queue.ReapInterval,
	})

	if _, _, err := queue.Recover(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to recover jobs")
	}
	queue.Start(ctx)

	router := api.SetupRouter(api.Dependencies{
		Uploads:   service.NewUploadService(objectStorage, jobs, queue),
		Jobs:      jobs,
		Positions: positions,
		Export:    service.NewExportService(positions),
		Tokens:    tokens,
		Metrics:   m,
		DB:        sqlDB,
		Logger:    appLogger,
	}, api.RouterConfig{
		Mode:           cfg.Server.Mode,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		CORS:           cfg.Server.CORS,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":      cfg.Server.Port,
			"mode":      cfg.Server.Mode,
			"job_store": cfg.Queue.JobStore,
			"storage":   cfg.Storage.Type,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	// running jobs finish; queued ones stay PENDING
	if err := queue.Stop(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Workers did not stop in time")
	}

	appLogger.Info("Server exited")
}

func newJobStore(cfg *config.Config, db *gorm.DB) jobstore.Store {
	if cfg.Queue.JobStore == "database" {
		return repository.NewJobRepository(db)
	}
	return jobstore.NewMemoryStore(cfg.Queue.Retention)
}
