package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payout statuses
const (
	PayoutStatusPending    = "PENDING"
	PayoutStatusProcessing = "PROCESSING"
	PayoutStatusCompleted  = "COMPLETED"
	PayoutStatusFailed     = "FAILED"
)

// Payout frequencies
const (
	PayoutFrequencyOnce    = "ONCE"
	PayoutFrequencyDaily   = "DAILY"
	PayoutFrequencyWeekly  = "WEEKLY"
	PayoutFrequencyMonthly = "MONTHLY"
)

// Payout method types
const (
	PayoutMethodBank        = "bank"
	PayoutMethodMobileMoney = "mobile_money"
)

// Payout is a scheduled transfer of earned balance to a merchant
// destination. An Amount of zero on a recurring payout means "sweep":
// the amount is resolved from the available balance at execution time.
type Payout struct {
	ID             uint            `gorm:"primarykey"`
	MerchantID     uint            `gorm:"index;not null"`
	PayoutMethodID uint            `gorm:"index;not null"`
	Reference      string          `gorm:"uniqueIndex;not null"` // PAY-YYYYMMDD-NNNN
	Amount         decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Fee            decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	NetAmount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency       string          `gorm:"default:'NGN'"`
	Status         string          `gorm:"index;not null;default:'PENDING'"`
	Frequency      string          `gorm:"not null;default:'ONCE'"`
	FailureReason  string
	RailReference  string // reference returned by the transfer rail
	ScheduledFor   time.Time `gorm:"index;not null"`
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Sweep reports whether the payout amount is resolved at execution time.
func (p *Payout) Sweep() bool {
	return p.Amount.IsZero()
}

func (p *Payout) Recurring() bool {
	return p.Frequency != PayoutFrequencyOnce
}

// PayoutMethod is a merchant-owned transfer destination. At most one
// method per merchant carries IsDefault; the repository enforces the
// clear-then-set inside a single transaction.
type PayoutMethod struct {
	ID            uint   `gorm:"primarykey"`
	MerchantID    uint   `gorm:"index;not null"`
	Type          string `gorm:"not null"` // bank | mobile_money
	BankName      string
	BankCode      string
	AccountNumber string
	AccountName   string
	PhoneNumber   string
	Provider      string // mobile money operator
	IsDefault     bool   `gorm:"default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
