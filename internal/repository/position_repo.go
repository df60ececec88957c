package repository

import (
	"context"
	"fmt"

	"github.com/timmy/shareledger/internal/domain"
	"gorm.io/gorm"
)

const defaultInsertChunkSize = 500

// PositionRepository persists parsed share positions.
type PositionRepository struct {
	db        *gorm.DB
	chunkSize int
}

// NewPositionRepository creates a new PositionRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//   - chunkSize: rows per INSERT statement inside a batch; <= 0 uses the default.
// Returns:
//   - *PositionRepository: repository instance bound to db.
func NewPositionRepository(db *gorm.DB, chunkSize int) *PositionRepository {
	if chunkSize <= 0 {
		chunkSize = defaultInsertChunkSize
	}
	return &PositionRepository{db: db, chunkSize: chunkSize}
}

// InsertBatch stores every position in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - positions: the parsed batch; an empty batch is a no-op.
// Returns:
//   - error: *domain.PersistenceError when any row fails; nothing from the batch is kept.
func (r *PositionRepository) InsertBatch(ctx context.Context, positions []domain.Position) error {
	if len(positions) == 0 {
		return nil
	}

	// copy so callers never observe ids assigned by a rolled back insert
	rows := make([]domain.Position, len(positions))
	copy(rows, positions)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, r.chunkSize).Error
	})
	if err != nil {
		return &domain.PersistenceError{Cause: err}
	}
	return nil
}

// Count returns the number of stored positions.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: row count.
//   - error: non-nil if the query fails.
func (r *PositionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Position{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return count, nil
}

// List returns positions in insertion order with pagination.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of rows; <= 0 returns every row.
//   - offset: number of rows to skip; only applied together with limit.
// Returns:
//   - []domain.Position: matching rows.
//   - error: non-nil if the query fails.
func (r *PositionRepository) List(ctx context.Context, limit, offset int) ([]domain.Position, error) {
	var positions []domain.Position
	query := r.db.WithContext(ctx).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}
