package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Merchant statuses
const (
	MerchantStatusActive   = "active"
	MerchantStatusInactive = "inactive"
)

type Merchant struct {
	ID           uint   `gorm:"primarykey"`
	BusinessName string `gorm:"not null"`
	BusinessType string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex"`
	Phone        string
	Status       string `gorm:"default:'active'"`
	Metadata     JSON   `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// AccountAgeDays returns full days since the merchant record was created.
func (m *Merchant) AccountAgeDays(now time.Time) int {
	return int(now.Sub(m.CreatedAt).Hours() / 24)
}

type Outlet struct {
	ID         uint   `gorm:"primarykey"`
	MerchantID uint   `gorm:"index;not null"`
	Name       string `gorm:"not null"`
	Address    string
	Status     string `gorm:"default:'active'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Terminal struct {
	ID           uint   `gorm:"primarykey"`
	MerchantID   uint   `gorm:"index;not null"`
	OutletID     uint   `gorm:"index;not null"`
	SerialNumber string `gorm:"uniqueIndex;not null"`
	Status       string `gorm:"default:'active'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MerchantMetrics holds the trailing performance numbers tier resolution
// runs on. Volume and count cover paid invoices in the last 30 days.
type MerchantMetrics struct {
	PaidVolume30d  decimal.Decimal
	PaidCount30d   int64
	AccountAgeDays int
}
