package invoice

import (
	"context"
	"time"

	"payrail/internal/models"
)

// Service is the invoice ledger: it owns invoice lifecycle state and the
// monetary fields set at creation time.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Invoice, error)
	Get(ctx context.Context, id uint) (*models.Invoice, error)
	GetByRequestCode(ctx context.Context, code string) (*models.Invoice, error)
	List(ctx context.Context, merchantID uint, limit, offset int) ([]models.Invoice, error)

	// MarkPaid transitions the invoice to PAID and records the payment
	// in one transaction. Calling it on an already-PAID invoice is a
	// no-op (applied=false), never an error; webhook replays depend on
	// that.
	MarkPaid(ctx context.Context, invoiceID uint, paidAt time.Time, payment *models.Payment, actor string) (applied bool, err error)

	Cancel(ctx context.Context, invoiceID uint, actor string) (*models.Invoice, error)
	Update(ctx context.Context, invoiceID uint, input UpdateInput) (*models.Invoice, error)
}

// TierResolver yields the pricing tier for a merchant's trailing metrics.
type TierResolver interface {
	Resolve(ctx context.Context, m models.MerchantMetrics) (*models.Tier, error)
}

// BalanceInvalidator drops cached balances after revenue-changing events.
type BalanceInvalidator interface {
	Invalidate(ctx context.Context, merchantID uint)
}
