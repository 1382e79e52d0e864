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

// MerchantDirectory provides the read-only merchant/outlet/terminal
// lookups the invoice preconditions run on, plus the trailing metrics
// feeding tier resolution.
type MerchantDirectory interface {
	GetMerchant(ctx context.Context, id uint) (*models.Merchant, error)
	GetOutlet(ctx context.Context, id uint) (*models.Outlet, error)
	CountActiveTerminals(ctx context.Context, outletID uint) (int64, error)
	GetCategory(ctx context.Context, id uint) (*models.InvoiceCategory, error)
	Metrics(ctx context.Context, merchantID uint, now time.Time) (models.MerchantMetrics, error)
}

// PayoutMethodRepository owns merchant transfer destinations, including
// the single-default invariant.
type PayoutMethodRepository interface {
	GetPayoutMethod(ctx context.Context, id uint) (*models.PayoutMethod, error)
	ListPayoutMethods(ctx context.Context, merchantID uint) ([]models.PayoutMethod, error)
	CreatePayoutMethod(ctx context.Context, m *models.PayoutMethod) error
	SetDefaultPayoutMethod(ctx context.Context, merchantID, methodID uint) error
}

type merchantRepository struct {
	db *gorm.DB
}

func NewMerchantDirectory(db *gorm.DB) MerchantDirectory {
	return &merchantRepository{db: db}
}

func NewPayoutMethodRepository(db *gorm.DB) PayoutMethodRepository {
	return &merchantRepository{db: db}
}

func (r *merchantRepository) GetMerchant(ctx context.Context, id uint) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound.WithDetail("merchant %d", id)
		}
		return nil, err
	}
	return &merchant, nil
}

func (r *merchantRepository) GetOutlet(ctx context.Context, id uint) (*models.Outlet, error) {
	var outlet models.Outlet
	if err := r.db.WithContext(ctx).First(&outlet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound.WithDetail("outlet %d", id)
		}
		return nil, err
	}
	return &outlet, nil
}

func (r *merchantRepository) CountActiveTerminals(ctx context.Context, outletID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Terminal{}).
		Where("outlet_id = ? AND status = ?", outletID, "active").
		Count(&count).Error
	return count, err
}

func (r *merchantRepository) GetCategory(ctx context.Context, id uint) (*models.InvoiceCategory, error) {
	var category models.InvoiceCategory
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound.WithDetail("category %d", id)
		}
		return nil, err
	}
	return &category, nil
}

// Metrics aggregates paid invoice volume and count over the trailing 30
// days. Account age comes from the merchant row itself.
func (r *merchantRepository) Metrics(ctx context.Context, merchantID uint, now time.Time) (models.MerchantMetrics, error) {
	merchant, err := r.GetMerchant(ctx, merchantID)
	if err != nil {
		return models.MerchantMetrics{}, err
	}

	var row struct {
		Volume decimal.Decimal
		Count  int64
	}
	since := now.AddDate(0, 0, -30)
	err = r.db.WithContext(ctx).Model(&models.Invoice{}).
		Select("COALESCE(SUM(amount), 0) AS volume, COUNT(*) AS count").
		Where("merchant_id = ? AND status = ? AND paid_at >= ?", merchantID, models.InvoiceStatusPaid, since).
		Scan(&row).Error
	if err != nil {
		return models.MerchantMetrics{}, err
	}

	return models.MerchantMetrics{
		PaidVolume30d:  row.Volume,
		PaidCount30d:   row.Count,
		AccountAgeDays: merchant.AccountAgeDays(now),
	}, nil
}

func (r *merchantRepository) GetPayoutMethod(ctx context.Context, id uint) (*models.PayoutMethod, error) {
	var method models.PayoutMethod
	if err := r.db.WithContext(ctx).First(&method, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound.WithDetail("payout method %d", id)
		}
		return nil, err
	}
	return &method, nil
}

func (r *merchantRepository) ListPayoutMethods(ctx context.Context, merchantID uint) ([]models.PayoutMethod, error) {
	var methods []models.PayoutMethod
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("is_default DESC, id ASC").
		Find(&methods).Error
	return methods, err
}

// CreatePayoutMethod inserts a method. The merchant's first method
// becomes the default automatically.
func (r *merchantRepository) CreatePayoutMethod(ctx context.Context, m *models.PayoutMethod) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.PayoutMethod{}).
			Where("merchant_id = ?", m.MerchantID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			m.IsDefault = true
		} else if m.IsDefault {
			if err := clearDefault(tx, m.MerchantID); err != nil {
				return err
			}
		}
		return tx.Create(m).Error
	})
}

// SetDefaultPayoutMethod flips the default flag atomically: the clear
// and the set run inside one transaction so no two methods ever carry
// the flag at once.
func (r *merchantRepository) SetDefaultPayoutMethod(ctx context.Context, merchantID, methodID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var method models.PayoutMethod
		if err := tx.Where("id = ? AND merchant_id = ?", methodID, merchantID).
			First(&method).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerr.ErrNotFound.WithDetail("payout method %d", methodID)
			}
			return err
		}
		if err := clearDefault(tx, merchantID); err != nil {
			return err
		}
		return tx.Model(&models.PayoutMethod{}).
			Where("id = ?", methodID).
			Update("is_default", true).Error
	})
}

func clearDefault(tx *gorm.DB, merchantID uint) error {
	return tx.Model(&models.PayoutMethod{}).
		Where("merchant_id = ? AND is_default", merchantID).
		Update("is_default", false).Error
}
