package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses
const (
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// Payment records one reconciled gateway event against an invoice.
// Reference is the gateway-assigned event reference and doubles as the
// idempotency key: the unique index is what stops a replayed webhook
// from crediting an invoice twice.
type Payment struct {
	ID        uint            `gorm:"primarykey"`
	InvoiceID uint            `gorm:"index;not null"`
	Reference string          `gorm:"uniqueIndex;not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Fee       decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	NetAmount decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Channel   string          // card, bank_transfer, mobile_money, ussd
	Status    string          `gorm:"not null;default:'SUCCESS'"`
	Reason    string          // failure reason, if any
	CreatedAt time.Time
	UpdatedAt time.Time
}
