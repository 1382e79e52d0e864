package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice statuses
const (
	InvoiceStatusPending       = "PENDING"
	InvoiceStatusPaid          = "PAID"
	InvoiceStatusCancelled     = "CANCELLED"
	InvoiceStatusExpired       = "EXPIRED"
	InvoiceStatusPartiallyPaid = "PARTIALLY_PAID"
)

// Invoice is a customer-facing payment request. Amount is the principal,
// Fee the platform charge, TotalAmount always amount + fee. Status
// transitions are owned by the invoice service; nothing else writes them.
type Invoice struct {
	ID                 uint            `gorm:"primarykey"`
	InvoiceNumber      string          `gorm:"uniqueIndex;not null"` // INV-YYYYMMDD-NNNN
	MerchantID         uint            `gorm:"index;not null"`
	OutletID           uint            `gorm:"index;not null"`
	CategoryID         *uint           `gorm:"index"`
	CustomerName       string
	CustomerPhone      string
	Description        string
	Amount             decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Fee                decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalAmount        decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency           string          `gorm:"default:'NGN'"`
	Status             string          `gorm:"index;not null;default:'PENDING'"`
	Tier               string          // tier the fee was computed under
	GatewayRequestCode string          `gorm:"index"` // gateway-assigned, matched by webhooks
	CreatedAt          time.Time
	UpdatedAt          time.Time
	PaidAt             *time.Time
}

// Payable reports whether the invoice can still accept a payment event.
func (i *Invoice) Payable() bool {
	return i.Status == InvoiceStatusPending || i.Status == InvoiceStatusPartiallyPaid
}

// Mutable reports whether non-status fields may still be edited.
func (i *Invoice) Mutable() bool {
	return i.Status != InvoiceStatusPaid && i.Status != InvoiceStatusCancelled
}

// InvoiceCategory carries a fee multiplier applied on top of the tier
// schedule (e.g. 0.80 for healthcare, 0.90 for education).
type InvoiceCategory struct {
	ID            uint            `gorm:"primarykey"`
	Name          string          `gorm:"uniqueIndex;not null"`
	FeeMultiplier decimal.Decimal `gorm:"type:numeric(6,4);not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
