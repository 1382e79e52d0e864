package repositories

import (
	"context"
	"errors"
	"time"

	domainerr "payrail/internal/errors"
	"payrail/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepository owns invoice rows and their status transitions. The
// transactional dance (row locks, duplicate-key handling, audit appends)
// lives here; the invoice service supplies the business rules.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *models.Invoice, audit *models.AuditRecord) error
	GetByID(ctx context.Context, id uint) (*models.Invoice, error)
	GetByRequestCode(ctx context.Context, code string) (*models.Invoice, error)
	ListByMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.Invoice, error)

	// SetRequestCode stores the gateway payment request code once the
	// gateway has accepted the invoice.
	SetRequestCode(ctx context.Context, invoiceID uint, code string) error

	// Delete removes an invoice that never reached the gateway.
	Delete(ctx context.Context, invoiceID uint, audit *models.AuditRecord) error

	// ApplyPayment transitions the invoice to PAID and inserts the
	// payment row in one transaction. It reports applied=false without
	// error when the invoice is already PAID or the payment reference
	// was already recorded, which makes webhook replays no-ops.
	ApplyPayment(ctx context.Context, invoiceID uint, paidAt time.Time, payment *models.Payment, audit *models.AuditRecord) (applied bool, err error)

	// Transition moves the invoice from one of the allowed statuses to
	// the target status under a row lock.
	Transition(ctx context.Context, invoiceID uint, allowed []string, to string, audit *models.AuditRecord) (*models.Invoice, error)

	// UpdateFields patches mutable fields while the invoice is editable.
	UpdateFields(ctx context.Context, invoiceID uint, fields map[string]interface{}, audit *models.AuditRecord) (*models.Invoice, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *models.Invoice, audit *models.AuditRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		return appendAudit(tx, audit)
	})
}

func (r *invoiceRepository) SetRequestCode(ctx context.Context, invoiceID uint, code string) error {
	result := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Update("gateway_request_code", code)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerr.ErrNotFound.WithDetail("invoice %d", invoiceID)
	}
	return nil
}

func (r *invoiceRepository) Delete(ctx context.Context, invoiceID uint, audit *models.AuditRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Invoice{}, invoiceID).Error; err != nil {
			return err
		}
		return appendAudit(tx, audit)
	})
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound.WithDetail("invoice %d", id)
		}
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByRequestCode(ctx context.Context, code string) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.WithContext(ctx).
		Where("gateway_request_code = ?", code).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound.WithDetail("invoice with request code %s", code)
		}
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) ListByMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) ApplyPayment(ctx context.Context, invoiceID uint, paidAt time.Time, payment *models.Payment, audit *models.AuditRecord) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&inv, invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerr.ErrNotFound.WithDetail("invoice %d", invoiceID)
			}
			return err
		}

		// Already PAID: replayed or out-of-order delivery. Leave paidAt
		// untouched and do not add a second payment row.
		if inv.Status == models.InvoiceStatusPaid {
			return nil
		}
		if !inv.Payable() {
			return domainerr.ErrInvalidState.WithDetail(
				"invoice %s is %s, cannot apply payment", inv.InvoiceNumber, inv.Status)
		}

		if payment != nil {
			payment.InvoiceID = inv.ID
			if err := tx.Create(payment).Error; err != nil {
				// A concurrent delivery of the same reference won the
				// insert; the unique index makes the loser a no-op.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return nil
				}
				return err
			}
		}

		updates := map[string]interface{}{
			"status":  models.InvoiceStatusPaid,
			"paid_at": paidAt,
		}
		if err := tx.Model(&inv).Updates(updates).Error; err != nil {
			return err
		}

		applied = true
		return appendAudit(tx, audit)
	})
	return applied, err
}

func (r *invoiceRepository) Transition(ctx context.Context, invoiceID uint, allowed []string, to string, audit *models.AuditRecord) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&inv, invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerr.ErrNotFound.WithDetail("invoice %d", invoiceID)
			}
			return err
		}

		ok := false
		for _, status := range allowed {
			if inv.Status == status {
				ok = true
				break
			}
		}
		if !ok {
			return domainerr.ErrInvalidState.WithDetail(
				"invoice %s is %s, cannot transition to %s", inv.InvoiceNumber, inv.Status, to)
		}

		if err := tx.Model(&inv).Update("status", to).Error; err != nil {
			return err
		}
		inv.Status = to
		return appendAudit(tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) UpdateFields(ctx context.Context, invoiceID uint, fields map[string]interface{}, audit *models.AuditRecord) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&inv, invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerr.ErrNotFound.WithDetail("invoice %d", invoiceID)
			}
			return err
		}

		if !inv.Mutable() {
			return domainerr.ErrInvalidState.WithDetail(
				"invoice %s is %s and cannot be edited", inv.InvoiceNumber, inv.Status)
		}

		if err := tx.Model(&inv).Updates(fields).Error; err != nil {
			return err
		}
		return appendAudit(tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
