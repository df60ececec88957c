// Package jobstore tracks ingest jobs through PENDING -> RUNNING -> SUCCESS|FAILURE.
package jobstore

import (
	"context"

	"github.com/timmy/shareledger/internal/domain"
)

// Store is the job lifecycle contract shared by the in-memory store and the
// database-backed repository.
//
// Transitions that the lifecycle forbids return *domain.StateError; unknown
// ids return domain.ErrNotFound. Returned jobs are copies.
type Store interface {
	Create(ctx context.Context, fileRef, fileName, owner string) (*domain.Job, error)
	SetRunning(ctx context.Context, id string) error
	SetSuccess(ctx context.Context, id string, recordCount int) error
	SetFailure(ctx context.Context, id string, detail string) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	// ListByState returns jobs in the given state, oldest first.
	ListByState(ctx context.Context, state domain.JobState) ([]*domain.Job, error)
}
