package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Built-in tier names, lowest rank first.
const (
	TierBasic      = "basic"
	TierStandard   = "standard"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// Tier is one row of the pricing reference table. Tiers are ordered by
// Rank; a merchant qualifies for a tier only when all three thresholds
// (volume, count, account age) are met. Thresholds live in the database
// rather than a compiled constant so pricing changes without a deploy.
type Tier struct {
	ID                uint                `gorm:"primarykey"`
	Name              string              `gorm:"uniqueIndex;not null"`
	Rank              int                 `gorm:"uniqueIndex;not null"` // higher rank = better pricing
	FeePercent        decimal.Decimal     `gorm:"type:numeric(6,3);not null"`
	FeeMinimum        decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	FeeMaximum        decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	FeeFixed          decimal.NullDecimal `gorm:"type:numeric(18,2)"`
	PayoutFeePercent  decimal.Decimal     `gorm:"type:numeric(6,3);not null;default:0"`
	MinVolume30d      decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:0"`
	MinCount30d       int64               `gorm:"not null;default:0"`
	MinAccountAgeDays int                 `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Qualifies reports whether the metrics satisfy every threshold.
func (t *Tier) Qualifies(m MerchantMetrics) bool {
	return m.PaidVolume30d.GreaterThanOrEqual(t.MinVolume30d) &&
		m.PaidCount30d >= t.MinCount30d &&
		m.AccountAgeDays >= t.MinAccountAgeDays
}
