package repositories

import (
	"context"
	"errors"
	"time"

	domainerr "payrail/internal/errors"
	"payrail/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutRepository owns payout rows and the merchant-serialized balance
// authorization around them. Every balance check-then-act runs inside a
// transaction holding the merchant row lock, so two concurrent payout
// requests for one merchant cannot both pass a check that together
// overdraws the balance.
type PayoutRepository interface {
	// CreateAuthorized inserts a payout after verifying the merchant's
	// available balance covers it. Sweep payouts (zero amount) skip the
	// check since their amount is resolved at execution time.
	CreateAuthorized(ctx context.Context, p *models.Payout, audit *models.AuditRecord) error

	GetByID(ctx context.Context, id uint) (*models.Payout, error)
	ListByMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.Payout, error)
	ListDue(ctx context.Context, now time.Time) ([]models.Payout, error)

	// Claim transitions PENDING -> PROCESSING with a conditional update.
	// Reports false when another processor already claimed the payout,
	// which keeps a restarted sweep from double-dispatching.
	Claim(ctx context.Context, id uint) (bool, error)

	// AuthorizeProcessing re-verifies the balance under the merchant
	// lock right before dispatch, resolving sweep amounts against the
	// current balance. Returns ErrInsufficientBalance when the payout
	// no longer fits.
	AuthorizeProcessing(ctx context.Context, p *models.Payout, feePercent decimal.Decimal) error

	// Finalize records the terminal status of a processed payout.
	Finalize(ctx context.Context, id uint, status, railRef, reason string, processedAt time.Time, audit *models.AuditRecord) error

	// Reschedule pushes a PROCESSING payout back to PENDING at a new
	// time (used for zero-balance recurring sweeps).
	Reschedule(ctx context.Context, id uint, at time.Time, audit *models.AuditRecord) error

	// StuckProcessing lists payouts sitting in PROCESSING since before
	// the cutoff. They are indeterminate, not failed: the rail transfer
	// may have succeeded, so resolution needs a rail reconciliation.
	StuckProcessing(ctx context.Context, cutoff time.Time) ([]models.Payout, error)
}

type payoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) CreateAuthorized(ctx context.Context, p *models.Payout, audit *models.AuditRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMerchant(tx, p.MerchantID); err != nil {
			return err
		}

		if !p.Sweep() {
			available, err := availableBalance(tx, p.MerchantID, 0)
			if err != nil {
				return err
			}
			if available.LessThan(p.Amount) {
				return domainerr.ErrInsufficientBalance.WithDetail(
					"merchant %d: requested %s, available %s",
					p.MerchantID, p.Amount.StringFixed(2), available.StringFixed(2))
			}
		}

		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return appendAudit(tx, audit)
	})
}

func (r *payoutRepository) GetByID(ctx context.Context, id uint) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound.WithDetail("payout %d", id)
		}
		return nil, err
	}
	return &payout, nil
}

func (r *payoutRepository) ListByMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("scheduled_for DESC").
		Limit(limit).Offset(offset).
		Find(&payouts).Error
	return payouts, err
}

func (r *payoutRepository) ListDue(ctx context.Context, now time.Time) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", models.PayoutStatusPending, now).
		Order("scheduled_for ASC").
		Find(&payouts).Error
	return payouts, err
}

func (r *payoutRepository) Claim(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, models.PayoutStatusPending).
		Update("status", models.PayoutStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *payoutRepository) AuthorizeProcessing(ctx context.Context, p *models.Payout, feePercent decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMerchant(tx, p.MerchantID); err != nil {
			return err
		}

		// The payout's own PROCESSING reservation is excluded so it is
		// not counted against itself.
		available, err := availableBalance(tx, p.MerchantID, p.ID)
		if err != nil {
			return err
		}

		if p.Sweep() {
			if !available.IsPositive() {
				return domainerr.ErrInsufficientBalance.WithDetail(
					"merchant %d has no available balance to sweep", p.MerchantID)
			}
			p.Amount = available
			p.Fee = available.Mul(feePercent).Div(decimal.NewFromInt(100)).Round(2)
			p.NetAmount = p.Amount.Sub(p.Fee)
			return tx.Model(&models.Payout{}).
				Where("id = ?", p.ID).
				Updates(map[string]interface{}{
					"amount":     p.Amount,
					"fee":        p.Fee,
					"net_amount": p.NetAmount,
				}).Error
		}

		if available.LessThan(p.Amount) {
			return domainerr.ErrInsufficientBalance.WithDetail(
				"payout %s: requested %s, available %s",
				p.Reference, p.Amount.StringFixed(2), available.StringFixed(2))
		}
		return nil
	})
}

func (r *payoutRepository) Finalize(ctx context.Context, id uint, status, railRef, reason string, processedAt time.Time, audit *models.AuditRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Payout{}).
			Where("id = ? AND status = ?", id, models.PayoutStatusProcessing).
			Updates(map[string]interface{}{
				"status":         status,
				"rail_reference": railRef,
				"failure_reason": reason,
				"processed_at":   processedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerr.ErrInvalidState.WithDetail("payout %d is not PROCESSING", id)
		}
		return appendAudit(tx, audit)
	})
}

func (r *payoutRepository) Reschedule(ctx context.Context, id uint, at time.Time, audit *models.AuditRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Payout{}).
			Where("id = ? AND status = ?", id, models.PayoutStatusProcessing).
			Updates(map[string]interface{}{
				"status":        models.PayoutStatusPending,
				"scheduled_for": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerr.ErrInvalidState.WithDetail("payout %d is not PROCESSING", id)
		}
		return appendAudit(tx, audit)
	})
}

func (r *payoutRepository) StuckProcessing(ctx context.Context, cutoff time.Time) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.PayoutStatusProcessing, cutoff).
		Find(&payouts).Error
	return payouts, err
}
