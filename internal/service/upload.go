package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/jobstore"
	"github.com/timmy/shareledger/internal/logger"
	"github.com/timmy/shareledger/internal/source/dropdir"
	"github.com/timmy/shareledger/internal/storage"
)

const xmlContentType = "application/xml"

// Enqueuer hands a PENDING job to the workers.
type Enqueuer interface {
	Enqueue(jobID string) error
}

// UploadService accepts position files: it validates them, stores the
// artifact, creates the PENDING job and enqueues it.
type UploadService struct {
	storage storage.ObjectStorage
	jobs    jobstore.Store
	queue   Enqueuer
}

// NewUploadService creates a new upload service
func NewUploadService(objectStorage storage.ObjectStorage, jobs jobstore.Store, queue Enqueuer) *UploadService {
	return &UploadService{storage: objectStorage, jobs: jobs, queue: queue}
}

// ValidateFileName rejects empty names and names whose last dot segment is not
// "xml" (case-insensitive).
func ValidateFileName(fileName string) error {
	if fileName == "" {
		return &domain.ValidationError{Field: "file", Reason: "no selected file"}
	}
	if !dropdir.IsXMLName(fileName) {
		return &domain.ValidationError{Field: "file", Reason: "file type not allowed"}
	}
	return nil
}

// Submit stores body and returns the created job, which is PENDING at the
// moment it is returned unless a worker already picked it up.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileName: client supplied name, used for validation and the storage key.
//   - body: file content.
//   - size: content length, or -1 when unknown.
//   - owner: caller identity recorded on the job.
// Returns:
//   - *domain.Job: the accepted job.
//   - error: *domain.ValidationError for bad input; nothing is stored in that case.
func (s *UploadService) Submit(ctx context.Context, fileName string, body io.Reader, size int64, owner string) (*domain.Job, error) {
	if err := ValidateFileName(fileName); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, &domain.ValidationError{Field: "file", Reason: "file is empty"}
	}

	key := storage.UploadKey(uuid.NewString(), fileName)
	if err := s.storage.Upload(ctx, key, body, size, xmlContentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	job, err := s.jobs.Create(ctx, key, fileName, owner)
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			logger.FromContext(ctx).WithField(logger.FieldFile, key).WithError(delErr).Error("Failed to rollback stored upload")
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	ctx = logger.SetJobID(ctx, job.ID)
	if err := s.queue.Enqueue(job.ID); err != nil {
		s.abandon(ctx, job.ID, err)
		return nil, err
	}

	logger.CtxInfo(ctx, "Upload accepted: file=%s, key=%s", fileName, key)
	return job, nil
}

// abandon finishes a job that could not be queued so it does not sit in
// PENDING forever.
func (s *UploadService) abandon(ctx context.Context, jobID string, cause error) {
	err := s.jobs.SetRunning(ctx, jobID)
	if err == nil {
		err = s.jobs.SetFailure(ctx, jobID, cause.Error())
	}
	if err != nil {
		log := logger.FromContext(ctx).WithError(err)
		if isStateError(err) {
			log = log.WithField("bug", true)
		}
		log.Error("Failed to fail unqueued job")
	}
}
