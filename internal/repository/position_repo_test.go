package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shareledger/internal/domain"
	"gorm.io/gorm"
)

func samplePositions() []domain.Position {
	return []domain.Position{
		{ClientCode: 1001, SecurityCode: "ACME", ISIN: "US0378331005", Quantity: 150, TotalCost: 12500.75, PositionType: domain.PositionTypeLong},
		{ClientCode: 1002, SecurityCode: "GLOBX", ISIN: "GB0002634946", Quantity: -40, TotalCost: 3300, PositionType: domain.PositionTypeShort},
		{ClientCode: 1003, SecurityCode: "INITECH", ISIN: "DE0007164600", Quantity: 0, TotalCost: 1500, PositionType: domain.PositionTypeLong},
	}
}

func TestPositionRepository_InsertBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewPositionRepository(newTestDB(t), 2)

	require.NoError(t, repo.InsertBatch(ctx, samplePositions()))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	stored, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, want := range samplePositions() {
		got := stored[i]
		assert.Equal(t, want.ClientCode, got.ClientCode)
		assert.Equal(t, want.SecurityCode, got.SecurityCode)
		assert.Equal(t, want.ISIN, got.ISIN)
		assert.Equal(t, want.Quantity, got.Quantity)
		assert.InDelta(t, want.TotalCost, got.TotalCost, 1e-9)
		assert.Equal(t, want.PositionType, got.PositionType)
	}

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "GLOBX", page[0].SecurityCode)
}

func TestPositionRepository_EmptyBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewPositionRepository(newTestDB(t), 0)

	require.NoError(t, repo.InsertBatch(ctx, nil))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPositionRepository_MidBatchFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	injected := errors.New("injected insert failure")

	calls := 0
	failOn := 2
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_chunk", func(tx *gorm.DB) {
		if tx.Statement.Table != "share_positions" {
			return
		}
		calls++
		if calls == failOn {
			tx.AddError(injected)
		}
	}))

	// one row per statement, so the first row is written before the failure
	repo := NewPositionRepository(db, 1)

	input := samplePositions()
	err := repo.InsertBatch(ctx, input)
	require.Error(t, err)

	var pe *domain.PersistenceError
	require.True(t, errors.As(err, &pe), "expected *domain.PersistenceError, got %T", err)
	assert.ErrorIs(t, err, injected)
	assert.Equal(t, 2, calls)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "no row of a failed batch may remain")

	for _, p := range input {
		assert.Zero(t, p.ID, "caller's slice must not carry ids from the rolled back insert")
	}

	// the store is still usable afterwards
	failOn = -1
	require.NoError(t, repo.InsertBatch(ctx, input))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
