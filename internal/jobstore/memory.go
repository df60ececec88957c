package jobstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/timmy/shareledger/internal/domain"
)

// MemoryStore keeps jobs in process memory. Finished jobs expire after the
// retention window; jobs still PENDING or RUNNING never expire.
//
// Stored values are never mutated: each transition stores a fresh copy, so a
// concurrent Get sees either the old or the new job, never a mix.
type MemoryStore struct {
	mu    sync.Mutex // serialises transitions
	cache *cache.Cache
	now   func() time.Time
}

// NewMemoryStore creates a store; retention <= 0 keeps finished jobs forever.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if retention > 0 {
		expiration = retention
		cleanup = retention / 2
		if cleanup < time.Second {
			cleanup = time.Second
		}
	}
	return &MemoryStore{
		cache: cache.New(expiration, cleanup),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, fileRef, fileName, owner string) (*domain.Job, error) {
	now := s.now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		State:     domain.JobStatePending,
		FileRef:   fileRef,
		FileName:  fileName,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.cache.Set(job.ID, job, cache.NoExpiration)
	return job.Clone(), nil
}

func (s *MemoryStore) SetRunning(_ context.Context, id string) error {
	return s.transition(id, domain.JobStateRunning, func(j *domain.Job, now time.Time) {
		j.StartedAt = &now
	})
}

func (s *MemoryStore) SetSuccess(_ context.Context, id string, recordCount int) error {
	return s.transition(id, domain.JobStateSuccess, func(j *domain.Job, now time.Time) {
		j.RecordCount = recordCount
		j.FinishedAt = &now
	})
}

func (s *MemoryStore) SetFailure(_ context.Context, id string, detail string) error {
	return s.transition(id, domain.JobStateFailure, func(j *domain.Job, now time.Time) {
		j.Error = detail
		j.FinishedAt = &now
	})
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v.(*domain.Job).Clone(), nil
}

func (s *MemoryStore) ListByState(_ context.Context, state domain.JobState) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for _, item := range s.cache.Items() {
		job := item.Object.(*domain.Job)
		if job.State == state {
			jobs = append(jobs, job.Clone())
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return jobs, nil
}

func (s *MemoryStore) transition(id string, to domain.JobState, apply func(*domain.Job, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(id)
	if !ok {
		return domain.ErrNotFound
	}
	current := v.(*domain.Job)
	if !current.State.CanTransitionTo(to) {
		return &domain.StateError{JobID: id, From: current.State, To: to}
	}

	now := s.now().UTC()
	next := current.Clone()
	next.State = to
	next.UpdatedAt = now
	apply(next, now)

	expiration := cache.NoExpiration
	if to.IsTerminal() {
		expiration = cache.DefaultExpiration
	}
	s.cache.Set(id, next, expiration)
	return nil
}
