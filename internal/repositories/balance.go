package repositories

import (
	"context"

	domainerr "payrail/internal/errors"
	"payrail/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceRepository computes the withdrawable balance as a read-time
// aggregate over invoice and payout history. No running total is stored,
// so there is no update path that can drift.
type BalanceRepository interface {
	AvailableBalance(ctx context.Context, merchantID uint) (decimal.Decimal, error)
}

type balanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) BalanceRepository {
	return &balanceRepository{db: db}
}

func (r *balanceRepository) AvailableBalance(ctx context.Context, merchantID uint) (decimal.Decimal, error) {
	return availableBalance(r.db.WithContext(ctx), merchantID, 0)
}

// availableBalance computes
//
//	sum(PAID invoice amounts) - sum(COMPLETED payouts) - sum(PENDING/PROCESSING payouts)
//
// floored at zero. excludePayoutID removes one payout's own reservation
// from the in-flight sum; the payout processor passes the payout it is
// deciding on so the reservation is not counted against itself.
// Callers that need the result to stay valid across a check-then-act
// must run this on a transaction already holding the merchant row lock.
func availableBalance(tx *gorm.DB, merchantID uint, excludePayoutID uint) (decimal.Decimal, error) {
	var earned, inFlight decimal.Decimal

	err := tx.Model(&models.Invoice{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("merchant_id = ? AND status = ?", merchantID, models.InvoiceStatusPaid).
		Scan(&earned).Error
	if err != nil {
		return decimal.Zero, err
	}

	q := tx.Model(&models.Payout{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("merchant_id = ? AND status IN ?", merchantID, []string{
			models.PayoutStatusCompleted,
			models.PayoutStatusPending,
			models.PayoutStatusProcessing,
		})
	if excludePayoutID != 0 {
		q = q.Where("id <> ?", excludePayoutID)
	}
	if err := q.Scan(&inFlight).Error; err != nil {
		return decimal.Zero, err
	}

	return Withdrawable(earned, inFlight), nil
}

// Withdrawable is the balance rule: earned revenue minus completed and
// in-flight payouts, floored at zero. Kept pure so the arithmetic is
// testable apart from the aggregation queries.
func Withdrawable(earned, reserved decimal.Decimal) decimal.Decimal {
	available := earned.Sub(reserved)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// lockMerchant takes the merchant row lock that serializes balance
// check-then-act sequences for one merchant.
func lockMerchant(tx *gorm.DB, merchantID uint) error {
	var merchant models.Merchant
	result := tx.Raw("SELECT id FROM merchants WHERE id = ? FOR UPDATE", merchantID).
		Scan(&merchant)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerr.ErrNotFound.WithDetail("merchant %d", merchantID)
	}
	return nil
}
