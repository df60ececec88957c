package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/shareledger/internal/config"
	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/jobstore"
	"github.com/timmy/shareledger/internal/logger"
	"github.com/timmy/shareledger/internal/repository"
	"github.com/timmy/shareledger/internal/service"
	"github.com/timmy/shareledger/internal/source/dropdir"
	"github.com/timmy/shareledger/internal/storage"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "shareledger-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	dir := flag.String("dir", "", "Directory of XML files to ingest (defaults to ingest.drop_dir)")
	sync := flag.Bool("sync", false, "Process files inline instead of through the worker pool")
	workers := flag.Int("workers", 0, "Worker count (defaults to queue.workers)")
	owner := flag.String("owner", "ingest-cli", "Identity recorded on created jobs")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *dir == "" {
		*dir = cfg.Ingest.DropDir
	}
	if *workers > 0 {
		cfg.Queue.Workers = *workers
	}

	appLogger.WithFields(logger.Fields{
		"dir":     *dir,
		"sync":    *sync,
		"workers": cfg.Queue.Workers,
	}).Info("Starting ingestion")

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	objectStorage, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	positions := repository.NewPositionRepository(db, cfg.Ingest.InsertChunkSize)
	ingestService := service.NewIngestService(objectStorage, positions, appLogger, &service.IngestConfig{
		MaxBytes: cfg.Server.MaxUploadBytes,
	})

	// jobs created here must be visible to the API when it shares the database
	var jobs jobstore.Store = jobstore.NewMemoryStore(0)
	if cfg.Queue.JobStore == "database" {
		jobs = repository.NewJobRepository(db)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	src := dropdir.NewAdapter(*dir)

	if *sync {
		runSync(ctx, src, objectStorage, ingestService, appLogger)
		return
	}

	queue := service.NewTaskQueue(jobs, ingestService, nil, appLogger, service.QueueConfig{
		Workers: cfg.Queue.Workers,
	})
	uploads := service.NewUploadService(objectStorage, jobs, queue)

	stats, err := service.IngestFromSource(ctx, src, uploads, *owner, 50)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to ingest from source")
	}

	queue.Start(ctx)
	if err := queue.WaitIdle(ctx); err != nil {
		appLogger.WithError(err).Warn("Interrupted before all jobs finished")
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Minute)
	defer stopCancel()
	if err := queue.Stop(stopCtx); err != nil {
		appLogger.WithError(err).Error("Workers did not stop in time")
	}

	var succeeded, failed, records int
	for _, job := range stats.Jobs {
		current, err := jobs.Get(context.Background(), job.ID)
		if err != nil {
			continue
		}
		switch current.State {
		case domain.JobStateSuccess:
			succeeded++
			records += current.RecordCount
		case domain.JobStateFailure:
			failed++
			appLogger.WithFields(logger.Fields{
				logger.FieldJobID: current.ID,
				logger.FieldFile:  current.FileName,
			}).Warnf("Job failed: %s", current.Error)
		}
	}

	appLogger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"rejected":  stats.FailedItems,
		"succeeded": succeeded,
		"failed":    failed,
		"records":   records,
	}).Info("Ingestion completed")
}

// runSync stores and processes each file in the calling goroutine. No jobs
// are created; the outcome of every file is logged.
func runSync(ctx context.Context, src *dropdir.Adapter, objectStorage storage.ObjectStorage, ingest *service.IngestService, log *logger.Logger) {
	var succeeded, failed, records int
	cursor := ""
	for {
		items, next, err := src.FetchBatch(ctx, cursor, 50)
		if err != nil {
			log.WithError(err).Fatal("Failed to read drop directory")
		}
		for _, item := range items {
			if ctx.Err() != nil {
				log.Warn("Interrupted")
				return
			}
			n, err := processFile(ctx, objectStorage, ingest, item.Name, item.LocalPath, item.Size)
			fileLog := log.WithField(logger.FieldFile, item.Name)
			if err != nil {
				failed++
				fileLog.WithError(err).Warn("File failed")
				continue
			}
			succeeded++
			records += n
			fileLog.WithField(logger.FieldCount, n).Info("File ingested")
		}
		if next == "" {
			break
		}
		cursor = next
	}

	log.WithFields(logger.Fields{
		"succeeded": succeeded,
		"failed":    failed,
		"records":   records,
	}).Info("Ingestion completed")
}

func processFile(ctx context.Context, objectStorage storage.ObjectStorage, ingest *service.IngestService, name, path string, size int64) (int, error) {
	if err := service.ValidateFileName(name); err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	key := storage.UploadKey(uuid.NewString(), name)
	if err := objectStorage.Upload(ctx, key, f, size, "application/xml"); err != nil {
		return 0, err
	}
	return ingest.Process(ctx, key)
}
