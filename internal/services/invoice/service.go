package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainerr "payrail/internal/errors"
	"payrail/internal/gateway"
	"payrail/internal/models"
	"payrail/internal/repositories"
	"payrail/internal/services/fees"
	"payrail/internal/services/sequence"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// createRetries bounds reference-conflict retries. The sequence counter
// makes a collision nearly impossible; the retry covers the backstop
// unique index on invoice_number.
const createRetries = 3

type service struct {
	invoices  repositories.InvoiceRepository
	directory repositories.MerchantDirectory
	resolver  TierResolver
	sequencer sequence.Service
	gateway   gateway.Client
	balances  BalanceInvalidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the invoice ledger service.
func NewService(
	invoices repositories.InvoiceRepository,
	directory repositories.MerchantDirectory,
	resolver TierResolver,
	sequencer sequence.Service,
	gw gateway.Client,
	balances BalanceInvalidator,
	logger *zap.Logger,
) Service {
	if invoices == nil {
		panic("invoice repository is required")
	}
	if directory == nil {
		panic("merchant directory is required")
	}
	if resolver == nil {
		panic("tier resolver is required")
	}
	if sequencer == nil {
		panic("sequencer is required")
	}
	if gw == nil {
		panic("gateway client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		invoices:  invoices,
		directory: directory,
		resolver:  resolver,
		sequencer: sequencer,
		gateway:   gw,
		balances:  balances,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Invoice, error) {
	if !input.Amount.IsPositive() {
		return nil, domainerr.ErrValidation.WithDetail("amount must be positive")
	}

	merchant, err := s.directory.GetMerchant(ctx, input.MerchantID)
	if err != nil {
		return nil, err
	}
	if !merchant.IsActive() {
		return nil, domainerr.ErrInvalidState.WithDetail(
			"merchant %d is %s", merchant.ID, merchant.Status)
	}

	outlet, err := s.directory.GetOutlet(ctx, input.OutletID)
	if err != nil {
		return nil, err
	}
	if outlet.MerchantID != merchant.ID {
		return nil, domainerr.ErrNotFound.WithDetail(
			"outlet %d does not belong to merchant %d", outlet.ID, merchant.ID)
	}

	terminals, err := s.directory.CountActiveTerminals(ctx, outlet.ID)
	if err != nil {
		return nil, err
	}
	if terminals == 0 {
		return nil, domainerr.ErrInvalidState.WithDetail(
			"outlet %d has no active collection terminal", outlet.ID)
	}

	multiplier := decimal.NewFromInt(1)
	if input.CategoryID != nil {
		category, err := s.directory.GetCategory(ctx, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		multiplier = category.FeeMultiplier
	}

	now := s.now()
	metrics, err := s.directory.Metrics(ctx, merchant.ID, now)
	if err != nil {
		return nil, err
	}
	tier, err := s.resolver.Resolve(ctx, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tier for merchant %d: %w", merchant.ID, err)
	}

	fee := fees.CalculateFee(input.Amount, fees.ScheduleFor(tier), multiplier)

	currency := input.Currency
	if currency == "" {
		currency = "NGN"
	}

	inv, err := s.mint(ctx, func(number string) *models.Invoice {
		return &models.Invoice{
			InvoiceNumber: number,
			MerchantID:    merchant.ID,
			OutletID:      outlet.ID,
			CategoryID:    input.CategoryID,
			CustomerName:  input.CustomerName,
			CustomerPhone: input.CustomerPhone,
			Description:   input.Description,
			Amount:        input.Amount,
			Fee:           fee,
			TotalAmount:   input.Amount.Add(fee),
			Currency:      currency,
			Status:        models.InvoiceStatusPending,
			Tier:          tier.Name,
		}
	}, now, input.Actor)
	if err != nil {
		return nil, err
	}

	// The row is persisted before the gateway call so a number collision
	// can never orphan a registered payment request. If the gateway
	// rejects the invoice the row is removed again.
	request, err := s.gateway.CreatePaymentRequest(ctx, gateway.PaymentRequestInput{
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.TotalAmount,
		Currency:      currency,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		Description:   input.Description,
	})
	if err != nil {
		s.discard(ctx, inv, input.Actor, err)
		return nil, fmt.Errorf("failed to register payment request: %w", err)
	}

	if err := s.invoices.SetRequestCode(ctx, inv.ID, request.RequestCode); err != nil {
		return nil, err
	}
	inv.GatewayRequestCode = request.RequestCode

	s.logger.Info("invoice created",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Uint("merchant_id", merchant.ID),
		zap.String("tier", tier.Name),
		zap.String("amount", inv.Amount.StringFixed(2)),
		zap.String("fee", inv.Fee.StringFixed(2)))
	return inv, nil
}

// mint allocates an invoice number and inserts the row, retrying on the
// backstop unique index.
func (s *service) mint(ctx context.Context, build func(number string) *models.Invoice, now time.Time, actor string) (*models.Invoice, error) {
	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		number, err := s.sequencer.Next(ctx, sequence.PrefixInvoice, now)
		if err != nil {
			return nil, err
		}

		inv := build(number)
		audit := repositories.NewAuditRecord(actor, "invoice", number, "create",
			nil, snapshot(inv))

		if err := s.invoices.Create(ctx, inv, audit); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Another writer landed the same reference first; mint a
				// fresh one and try again. Never surfaced to the caller.
				lastErr = err
				s.logger.Warn("invoice number collision, retrying",
					zap.String("invoice_number", number))
				continue
			}
			return nil, err
		}
		return inv, nil
	}

	return nil, fmt.Errorf("%w: invoice number allocation kept colliding: %v",
		domainerr.ErrConflict, lastErr)
}

// discard removes an invoice whose gateway registration failed. A failed
// cleanup only logs; the row stays PENDING with no request code and never
// becomes payable.
func (s *service) discard(ctx context.Context, inv *models.Invoice, actor string, cause error) {
	audit := repositories.NewAuditRecord(actor, "invoice", inv.InvoiceNumber, "discard",
		snapshot(inv), models.JSON{"reason": cause.Error()})
	if err := s.invoices.Delete(ctx, inv.ID, audit); err != nil {
		s.logger.Error("failed to remove invoice after gateway rejection",
			zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
	}
}

func (s *service) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *service) GetByRequestCode(ctx context.Context, code string) (*models.Invoice, error) {
	return s.invoices.GetByRequestCode(ctx, code)
}

func (s *service) List(ctx context.Context, merchantID uint, limit, offset int) ([]models.Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.invoices.ListByMerchant(ctx, merchantID, limit, offset)
}

func (s *service) MarkPaid(ctx context.Context, invoiceID uint, paidAt time.Time, payment *models.Payment, actor string) (bool, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return false, err
	}

	after := models.JSON{"status": models.InvoiceStatusPaid, "paid_at": paidAt}
	if payment != nil {
		after["payment_reference"] = payment.Reference
	}
	audit := repositories.NewAuditRecord(actor, "invoice", inv.InvoiceNumber, "mark_paid",
		models.JSON{"status": inv.Status}, after)

	applied, err := s.invoices.ApplyPayment(ctx, invoiceID, paidAt, payment, audit)
	if err != nil {
		return false, err
	}

	if applied && s.balances != nil {
		s.balances.Invalidate(ctx, inv.MerchantID)
	}
	return applied, nil
}

func (s *service) Cancel(ctx context.Context, invoiceID uint, actor string) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	audit := repositories.NewAuditRecord(actor, "invoice", inv.InvoiceNumber, "cancel",
		models.JSON{"status": inv.Status},
		models.JSON{"status": models.InvoiceStatusCancelled})

	return s.invoices.Transition(ctx, invoiceID,
		[]string{models.InvoiceStatusPending}, models.InvoiceStatusCancelled, audit)
}

func (s *service) Update(ctx context.Context, invoiceID uint, input UpdateInput) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.CustomerName != nil {
		fields["customer_name"] = *input.CustomerName
	}
	if input.CustomerPhone != nil {
		fields["customer_phone"] = *input.CustomerPhone
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if len(fields) == 0 {
		return inv, nil
	}

	audit := repositories.NewAuditRecord(input.Actor, "invoice", inv.InvoiceNumber, "update",
		snapshot(inv), models.JSON(fields))

	return s.invoices.UpdateFields(ctx, invoiceID, fields, audit)
}

func snapshot(inv *models.Invoice) models.JSON {
	return models.JSON{
		"invoice_number": inv.InvoiceNumber,
		"merchant_id":    inv.MerchantID,
		"outlet_id":      inv.OutletID,
		"amount":         inv.Amount.String(),
		"fee":            inv.Fee.String(),
		"total_amount":   inv.TotalAmount.String(),
		"status":         inv.Status,
		"customer_name":  inv.CustomerName,
		"customer_phone": inv.CustomerPhone,
		"description":    inv.Description,
	}
}
