// Package storetest holds behaviour checks shared by every jobstore.Store implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/jobstore"
)

// RunContract exercises the lifecycle rules against stores built by newStore.
func RunContract(t *testing.T, newStore func(t *testing.T) jobstore.Store) {
	t.Run("CreateStartsPending", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		job, err := s.Create(ctx, "uploads/a/positions.xml", "positions.xml", "42")
		require.NoError(t, err)
		require.NotEmpty(t, job.ID)
		assert.Equal(t, domain.JobStatePending, job.State)

		got, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatePending, got.State)
		assert.Equal(t, "uploads/a/positions.xml", got.FileRef)
		assert.Equal(t, "positions.xml", got.FileName)
		assert.Equal(t, "42", got.Owner)
		assert.False(t, got.CreatedAt.IsZero())
		assert.Nil(t, got.StartedAt)
	})

	t.Run("SuccessPath", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		job, err := s.Create(ctx, "ref", "f.xml", "")
		require.NoError(t, err)

		require.NoError(t, s.SetRunning(ctx, job.ID))
		running, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateRunning, running.State)
		require.NotNil(t, running.StartedAt)

		require.NoError(t, s.SetSuccess(ctx, job.ID, 3))
		done, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateSuccess, done.State)
		assert.Equal(t, 3, done.RecordCount)
		assert.Empty(t, done.Error)
		require.NotNil(t, done.FinishedAt)
	})

	t.Run("FailurePath", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		job, err := s.Create(ctx, "ref", "f.xml", "")
		require.NoError(t, err)

		require.NoError(t, s.SetRunning(ctx, job.ID))
		require.NoError(t, s.SetFailure(ctx, job.ID, "parse error: Quantity"))

		done, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateFailure, done.State)
		assert.Equal(t, "parse error: Quantity", done.Error)
	})

	t.Run("IllegalTransitions", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		pending, err := s.Create(ctx, "ref", "f.xml", "")
		require.NoError(t, err)
		assertStateError(t, s.SetSuccess(ctx, pending.ID, 1), domain.JobStatePending, domain.JobStateSuccess)
		assertStateError(t, s.SetFailure(ctx, pending.ID, "x"), domain.JobStatePending, domain.JobStateFailure)

		require.NoError(t, s.SetRunning(ctx, pending.ID))
		assertStateError(t, s.SetRunning(ctx, pending.ID), domain.JobStateRunning, domain.JobStateRunning)

		require.NoError(t, s.SetSuccess(ctx, pending.ID, 1))
		assertStateError(t, s.SetFailure(ctx, pending.ID, "late"), domain.JobStateSuccess, domain.JobStateFailure)
		assertStateError(t, s.SetRunning(ctx, pending.ID), domain.JobStateSuccess, domain.JobStateRunning)

		// rejected transitions leave the job untouched
		got, err := s.Get(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateSuccess, got.State)
		assert.Equal(t, 1, got.RecordCount)
		assert.Empty(t, got.Error)
	})

	t.Run("UnknownID", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.Get(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, s.SetRunning(ctx, "missing"), domain.ErrNotFound)
		assert.ErrorIs(t, s.SetSuccess(ctx, "missing", 1), domain.ErrNotFound)
		assert.ErrorIs(t, s.SetFailure(ctx, "missing", "x"), domain.ErrNotFound)
	})

	t.Run("ReturnedJobsAreCopies", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		job, err := s.Create(ctx, "ref", "f.xml", "")
		require.NoError(t, err)

		job.State = domain.JobStateSuccess
		got, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		got.State = domain.JobStateFailure

		again, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatePending, again.State)
	})

	t.Run("ListByState", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var ids []string
		for i := 0; i < 3; i++ {
			job, err := s.Create(ctx, "ref", "f.xml", "")
			require.NoError(t, err)
			ids = append(ids, job.ID)
		}
		require.NoError(t, s.SetRunning(ctx, ids[1]))

		pending, err := s.ListByState(ctx, domain.JobStatePending)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		got := map[string]bool{pending[0].ID: true, pending[1].ID: true}
		assert.True(t, got[ids[0]] && got[ids[2]])

		running, err := s.ListByState(ctx, domain.JobStateRunning)
		require.NoError(t, err)
		require.Len(t, running, 1)
		assert.Equal(t, ids[1], running[0].ID)
	})

	t.Run("ConcurrentReadersSeeWholeTransitions", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const jobs = 20
		ids := make([]string, jobs)
		for i := range ids {
			job, err := s.Create(ctx, "ref", "f.xml", "")
			require.NoError(t, err)
			ids[i] = job.ID
		}

		var wg sync.WaitGroup
		stop := make(chan struct{})
		torn := make(chan string, 1)

		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					for _, id := range ids {
						job, err := s.Get(ctx, id)
						if err != nil {
							continue
						}
						if msg := tornJob(job); msg != "" {
							select {
							case torn <- msg:
							default:
							}
						}
					}
				}
			}()
		}

		var writers sync.WaitGroup
		for i, id := range ids {
			writers.Add(1)
			go func(i int, id string) {
				defer writers.Done()
				if err := s.SetRunning(ctx, id); err != nil {
					return
				}
				if i%2 == 0 {
					_ = s.SetSuccess(ctx, id, i)
				} else {
					_ = s.SetFailure(ctx, id, "boom")
				}
			}(i, id)
		}
		writers.Wait()
		close(stop)
		wg.Wait()

		select {
		case msg := <-torn:
			t.Fatal(msg)
		default:
		}

		for i, id := range ids {
			job, err := s.Get(ctx, id)
			require.NoError(t, err)
			if i%2 == 0 {
				assert.Equal(t, domain.JobStateSuccess, job.State)
			} else {
				assert.Equal(t, domain.JobStateFailure, job.State)
			}
		}
	})
}

// tornJob reports a job whose fields disagree with its state.
func tornJob(job *domain.Job) string {
	switch job.State {
	case domain.JobStatePending:
		if job.StartedAt != nil || job.FinishedAt != nil {
			return "pending job carries timestamps"
		}
	case domain.JobStateRunning:
		if job.StartedAt == nil || job.FinishedAt != nil {
			return "running job has inconsistent timestamps"
		}
	case domain.JobStateSuccess:
		if job.FinishedAt == nil || job.Error != "" {
			return "successful job missing finish time or carrying an error"
		}
	case domain.JobStateFailure:
		if job.FinishedAt == nil || job.Error == "" {
			return "failed job missing finish time or error"
		}
	}
	return ""
}

func assertStateError(t *testing.T, err error, from, to domain.JobState) {
	t.Helper()
	var se *domain.StateError
	if !errors.As(err, &se) {
		t.Fatalf("expected *domain.StateError, got %v", err)
	}
	assert.Equal(t, from, se.From)
	assert.Equal(t, to, se.To)
}
