package repositories

import (
	"context"

	"gorm.io/gorm"
)

// SequenceRepository allocates per-day, per-prefix sequence numbers.
type SequenceRepository interface {
	// Increment bumps the counter for (prefix, day) and returns the new
	// value. The upsert-and-return runs as one statement, so concurrent
	// callers can never read the same value.
	Increment(ctx context.Context, prefix, day string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Increment(ctx context.Context, prefix, day string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO daily_sequences (prefix, day, value)
		VALUES (?, ?, 1)
		ON CONFLICT (prefix, day)
		DO UPDATE SET value = daily_sequences.value + 1
		RETURNING value`,
		prefix, day,
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
