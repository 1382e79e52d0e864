package payout

import (
	"context"

	"payrail/internal/models"

	"github.com/shopspring/decimal"
)

// CreateInput is a payout request. Amount must be positive for manual
// requests; the scheduler itself enqueues zero-amount sweeps for
// recurring payouts.
type CreateInput struct {
	MerchantID     uint
	PayoutMethodID uint
	Amount         decimal.Decimal
	Frequency      string
	Actor          string
}

// Process outcomes
const (
	OutcomeCompleted   = "COMPLETED"
	OutcomeFailed      = "FAILED"
	OutcomeRescheduled = "RESCHEDULED"
)

// ProcessResult reports what happened to one due payout. A batch always
// returns one result per claimed payout; a failure never aborts the
// rest of the batch.
type ProcessResult struct {
	PayoutID  uint   `json:"payout_id"`
	Reference string `json:"reference"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

// TierResolver yields the tier whose payout fee rate applies.
type TierResolver interface {
	Resolve(ctx context.Context, m models.MerchantMetrics) (*models.Tier, error)
}

// BalanceInvalidator drops cached balances after payout mutations.
type BalanceInvalidator interface {
	Invalidate(ctx context.Context, merchantID uint)
}
