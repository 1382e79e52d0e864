package repositories

import (
	"context"
	"errors"

	domainerr "payrail/internal/errors"
	"payrail/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository reads and annotates payment rows. Creation happens
// only through InvoiceRepository.ApplyPayment so the payment insert and
// the invoice transition share one transaction.
type PaymentRepository interface {
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID uint) ([]models.Payment, error)

	// MarkFailed flips the payment with the given reference to FAILED.
	// Reports found=false when no such payment exists. SUCCESS payments
	// are final and never downgraded; they also report found=false.
	MarkFailed(ctx context.Context, reference, reason string, audit *models.AuditRecord) (found bool, err error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound.WithDetail("payment %s", reference)
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) MarkFailed(ctx context.Context, reference, reason string, audit *models.AuditRecord) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A reconciled SUCCESS payment is final. A late or replayed
		// failure event must never downgrade it.
		result := tx.Model(&models.Payment{}).
			Where("reference = ? AND status <> ?", reference, models.PaymentStatusSuccess).
			Updates(map[string]interface{}{
				"status": models.PaymentStatusFailed,
				"reason": reason,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		found = true
		return appendAudit(tx, audit)
	})
	return found, err
}
