package jobstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/jobstore"
	"github.com/timmy/shareledger/internal/jobstore/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) jobstore.Store {
		return jobstore.NewMemoryStore(time.Hour)
	})
}

func TestMemoryStore_RetentionOnlyExpiresFinishedJobs(t *testing.T) {
	ctx := context.Background()
	s := jobstore.NewMemoryStore(50 * time.Millisecond)

	finished, err := s.Create(ctx, "ref", "done.xml", "")
	require.NoError(t, err)
	require.NoError(t, s.SetRunning(ctx, finished.ID))
	require.NoError(t, s.SetSuccess(ctx, finished.ID, 1))

	pending, err := s.Create(ctx, "ref", "waiting.xml", "")
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	_, err = s.Get(ctx, finished.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatePending, got.State)
}

func TestMemoryStore_ZeroRetentionKeepsJobs(t *testing.T) {
	ctx := context.Background()
	s := jobstore.NewMemoryStore(0)

	job, err := s.Create(ctx, "ref", "f.xml", "")
	require.NoError(t, err)
	require.NoError(t, s.SetRunning(ctx, job.ID))
	require.NoError(t, s.SetFailure(ctx, job.ID, "boom"))

	time.Sleep(20 * time.Millisecond)
	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailure, got.State)
}
