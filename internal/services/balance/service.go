// Package balance computes a merchant's withdrawable balance. The value
// is a read-time aggregate over invoice and payout history, cached
// briefly in Redis; payout authorization re-derives it under the
// merchant row lock and never trusts the cache.
package balance

import (
	"context"
	"time"

	"payrail/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cacheTTL = 30 * time.Second

// Cache is the slice of the redis cache service the balance reads go
// through. *cache.Service satisfies it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	GenerateKey(entityType, keyType string, value interface{}) string
}

type Service interface {
	// Available returns the merchant's withdrawable balance: paid
	// invoice revenue minus completed and in-flight payouts, floored
	// at zero.
	Available(ctx context.Context, merchantID uint) (decimal.Decimal, error)

	// Invalidate drops the cached balance after a revenue or payout
	// mutation.
	Invalidate(ctx context.Context, merchantID uint)
}

type service struct {
	repo   repositories.BalanceRepository
	cache  Cache
	logger *zap.Logger
}

func NewService(repo repositories.BalanceRepository, cacheSvc Cache, logger *zap.Logger) Service {
	if repo == nil {
		panic("balance repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:   repo,
		cache:  cacheSvc,
		logger: logger,
	}
}

func (s *service) Available(ctx context.Context, merchantID uint) (decimal.Decimal, error) {
	key := s.cacheKey(merchantID)

	if s.cache != nil {
		var cached string
		if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
			if value, err := decimal.NewFromString(cached); err == nil {
				return value, nil
			}
		}
	}

	available, err := s.repo.AvailableBalance(ctx, merchantID)
	if err != nil {
		return decimal.Zero, err
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, key, available.String(), cacheTTL); err != nil {
			s.logger.Warn("failed to cache balance", zap.Uint("merchant_id", merchantID), zap.Error(err))
		}
	}
	return available, nil
}

func (s *service) Invalidate(ctx context.Context, merchantID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(merchantID)); err != nil {
		s.logger.Warn("failed to invalidate balance cache",
			zap.Uint("merchant_id", merchantID), zap.Error(err))
	}
}

func (s *service) cacheKey(merchantID uint) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.GenerateKey("balance", "merchant", merchantID)
}
