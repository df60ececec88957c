package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/logger"
	"github.com/timmy/shareledger/internal/parser"
	"github.com/timmy/shareledger/internal/source"
	"github.com/timmy/shareledger/internal/storage"
)

// PositionWriter persists a parsed batch atomically.
type PositionWriter interface {
	InsertBatch(ctx context.Context, positions []domain.Position) error
}

// IngestService turns a stored XML artifact into persisted positions.
type IngestService struct {
	storage   storage.ObjectStorage
	positions PositionWriter
	logger    *logger.Logger
	maxBytes  int64
}

// IngestConfig holds configuration for the ingest service
type IngestConfig struct {
	// MaxBytes bounds how much of an artifact is read; <= 0 means unbounded.
	MaxBytes int64
}

// NewIngestService creates a new ingest service
func NewIngestService(
	objectStorage storage.ObjectStorage,
	positions PositionWriter,
	log *logger.Logger,
	cfg *IngestConfig,
) *IngestService {
	if cfg == nil {
		cfg = &IngestConfig{}
	}
	return &IngestService{
		storage:   objectStorage,
		positions: positions,
		logger:    log,
		maxBytes:  cfg.MaxBytes,
	}
}

// log returns a logger from context if available, otherwise returns the service logger
func (s *IngestService) log(ctx context.Context) *logger.Logger {
	if ctx != nil && logger.GetFieldString(ctx, logger.FieldJobID) != "" {
		return logger.FromContext(ctx)
	}
	if s.logger != nil {
		return s.logger
	}
	return logger.GetDefault()
}

// Process reads the artifact at fileRef, parses it and persists the positions
// in one batch. It returns the number of stored positions. Parse failures
// come back as *domain.ParseError and store failures as
// *domain.PersistenceError; in both cases nothing from the artifact is kept.
func (s *IngestService) Process(ctx context.Context, fileRef string) (int, error) {
	start := time.Now()
	s.log(ctx).WithField(logger.FieldFile, fileRef).Debug("Processing artifact")

	data, err := s.read(ctx, fileRef)
	if err != nil {
		return 0, err
	}

	positions, err := parser.Parse(data)
	if err != nil {
		return 0, err
	}

	if err := s.positions.InsertBatch(ctx, positions); err != nil {
		return 0, err
	}

	logger.With(logger.Fields{
		logger.FieldFile: fileRef,
		logger.FieldSize: len(data),
	}).WithCount(len(positions)).WithDuration(time.Since(start)).Info(ctx, "Batch persisted")

	return len(positions), nil
}

func (s *IngestService) read(ctx context.Context, fileRef string) ([]byte, error) {
	rc, err := s.storage.Download(ctx, fileRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if s.maxBytes > 0 {
		r = io.LimitReader(rc, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("artifact exceeds %d bytes", s.maxBytes)
	}
	return data, nil
}

// IngestStats holds statistics for a directory ingestion run
type IngestStats struct {
	TotalItems     int
	SubmittedItems int
	FailedItems    int
	Jobs           []*domain.Job
	StartTime      time.Time
	EndTime        time.Time
}

// IngestFromSource uploads every file offered by src through uploads and
// returns the created jobs. A file that cannot be opened or is rejected is
// counted as failed and the run continues.
func IngestFromSource(ctx context.Context, src source.Source, uploads *UploadService, owner string, batchSize int) (*IngestStats, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	stats := &IngestStats{StartTime: time.Now()}

	log := logger.FromContext(ctx)
	log.WithFields(logger.Fields{"source": src.GetSourceID()}).Info("Starting ingestion")

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		items, nextCursor, err := src.FetchBatch(ctx, cursor, batchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to fetch batch: %w", err)
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			stats.TotalItems++
			job, err := submitItem(ctx, uploads, item, owner)
			if err != nil {
				stats.FailedItems++
				var verr *domain.ValidationError
				if errors.As(err, &verr) {
					log.WithField(logger.FieldFile, item.Name).Warnf("File rejected: %v", err)
				} else {
					log.WithField(logger.FieldFile, item.Name).WithError(err).Error("Failed to submit file")
				}
				continue
			}
			stats.SubmittedItems++
			stats.Jobs = append(stats.Jobs, job)
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	stats.EndTime = time.Now()
	log.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"submitted": stats.SubmittedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Ingestion submitted")

	return stats, nil
}

func submitItem(ctx context.Context, uploads *UploadService, item source.FileItem, owner string) (*domain.Job, error) {
	f, err := os.Open(item.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", item.LocalPath, err)
	}
	defer f.Close()
	return uploads.Submit(ctx, item.Name, f, item.Size, owner)
}
