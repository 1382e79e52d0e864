package repositories

import (
	"context"
	"time"

	"payrail/internal/models"
	"payrail/internal/repositories/cache"

	"gorm.io/gorm"
)

const tierCacheTTL = 5 * time.Minute

// TierRepository serves the pricing reference table. The list is small
// and read on every invoice creation, so it sits behind a short cache.
type TierRepository interface {
	ListByRankDesc(ctx context.Context) ([]models.Tier, error)
}

type tierRepository struct {
	db    *gorm.DB
	cache *cache.Service
}

func NewTierRepository(db *gorm.DB, cacheSvc *cache.Service) TierRepository {
	return &tierRepository{db: db, cache: cacheSvc}
}

func (r *tierRepository) ListByRankDesc(ctx context.Context) ([]models.Tier, error) {
	key := "tiers:by_rank"
	if r.cache != nil {
		var cached []models.Tier
		if found, err := r.cache.Get(ctx, key, &cached); err == nil && found {
			return cached, nil
		}
	}

	var tiers []models.Tier
	if err := r.db.WithContext(ctx).Order("rank DESC").Find(&tiers).Error; err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.SetWithTTL(ctx, key, tiers, tierCacheTTL)
	}
	return tiers, nil
}
