package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/shareledger/internal/domain"
	"gorm.io/gorm"
)

// JobRepository keeps ingest jobs in the ingest_jobs table so their state
// survives restarts. Transitions are conditional UPDATEs on the current
// state, which makes them safe across connections and processes.
type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, now: time.Now}
}

// Create inserts a PENDING job for the stored artifact.
func (r *JobRepository) Create(ctx context.Context, fileRef, fileName, owner string) (*domain.Job, error) {
	now := r.now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		State:     domain.JobStatePending,
		FileRef:   fileRef,
		FileName:  fileName,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job.Clone(), nil
}

// SetRunning moves a PENDING job to RUNNING.
func (r *JobRepository) SetRunning(ctx context.Context, id string) error {
	now := r.now().UTC()
	return r.transition(ctx, id, domain.JobStatePending, domain.JobStateRunning, map[string]interface{}{
		"started_at": now,
	})
}

// SetSuccess moves a RUNNING job to SUCCESS with its record count.
func (r *JobRepository) SetSuccess(ctx context.Context, id string, recordCount int) error {
	now := r.now().UTC()
	return r.transition(ctx, id, domain.JobStateRunning, domain.JobStateSuccess, map[string]interface{}{
		"record_count": recordCount,
		"finished_at":  now,
	})
}

// SetFailure moves a RUNNING job to FAILURE with an error detail.
func (r *JobRepository) SetFailure(ctx context.Context, id string, detail string) error {
	now := r.now().UTC()
	return r.transition(ctx, id, domain.JobStateRunning, domain.JobStateFailure, map[string]interface{}{
		"error":       detail,
		"finished_at": now,
	})
}

// Get retrieves a job by its ID.
// Returns domain.ErrNotFound when no such job exists.
func (r *JobRepository) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListByState retrieves jobs in one state, oldest first.
func (r *JobRepository) ListByState(ctx context.Context, state domain.JobState) ([]*domain.Job, error) {
	var jobs []*domain.Job
	if err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("created_at ASC").
		Order("id ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s jobs: %w", state, err)
	}
	return jobs, nil
}

func (r *JobRepository) transition(ctx context.Context, id string, from, to domain.JobState, updates map[string]interface{}) error {
	updates["state"] = to
	updates["updated_at"] = r.now().UTC()

	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to move job %s to %s: %w", id, to, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return &domain.StateError{JobID: id, From: current.State, To: to}
}
