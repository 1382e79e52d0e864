// Package webhook reconciles gateway payment events into invoice and
// payment state. Deliveries are at-least-once and unordered; everything
// here is written so a replayed or late event is a harmless no-op.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	domainerr "payrail/internal/errors"
	"payrail/internal/models"
	"payrail/internal/repositories"

	"go.uber.org/zap"
)

const actorGateway = "gateway"

type Service interface {
	// Handle verifies and applies one raw webhook delivery.
	Handle(ctx context.Context, payload []byte, signature string) (*Result, error)
}

// InvoiceLedger is the slice of the invoice service the reconciler
// needs: resolving the target invoice and applying the paid transition.
type InvoiceLedger interface {
	GetByRequestCode(ctx context.Context, code string) (*models.Invoice, error)
	MarkPaid(ctx context.Context, invoiceID uint, paidAt time.Time, payment *models.Payment, actor string) (bool, error)
}

type service struct {
	secret   []byte
	ledger   InvoiceLedger
	payments repositories.PaymentRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(secret []byte, ledger InvoiceLedger, payments repositories.PaymentRepository, logger *zap.Logger) Service {
	if len(secret) == 0 {
		panic("webhook secret is required")
	}
	if ledger == nil {
		panic("invoice ledger is required")
	}
	if payments == nil {
		panic("payment repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		secret:   secret,
		ledger:   ledger,
		payments: payments,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) Handle(ctx context.Context, payload []byte, signature string) (*Result, error) {
	if !VerifySignature(s.secret, payload, signature) {
		return nil, domainerr.ErrUnauthorized.WithDetail("webhook signature mismatch")
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domainerr.ErrValidation.WithDetail("malformed webhook payload: %v", err)
	}

	switch event.Event {
	case EventChargeSuccess, EventPaymentRequestSuccess:
		return s.applySuccess(ctx, event)
	case EventPaymentRequestPending:
		// Informational only. Ordering is not guaranteed, so a pending
		// event after a success must never touch invoice state.
		s.logger.Debug("payment pending",
			zap.String("request_code", event.Data.requestCode()))
		return &Result{Event: event.Event, Reason: "informational"}, nil
	case EventPaymentFailed:
		return s.applyFailure(ctx, event)
	default:
		s.logger.Warn("unknown webhook event dropped", zap.String("event", event.Event))
		return &Result{Event: event.Event, Reason: "unknown event"}, nil
	}
}

func (s *service) applySuccess(ctx context.Context, event Event) (*Result, error) {
	data := event.Data
	if data.Reference == "" {
		s.logger.Warn("success event without reference dropped",
			zap.String("event", event.Event))
		return &Result{Event: event.Event, Reason: "missing reference"}, nil
	}

	inv, err := s.ledger.GetByRequestCode(ctx, data.requestCode())
	if err != nil {
		if errors.Is(err, domainerr.ErrNotFound) {
			// A stale or foreign reference the system will never match.
			// Acknowledge so the gateway stops retrying.
			s.logger.Warn("webhook for unknown invoice acknowledged",
				zap.String("event", event.Event),
				zap.String("request_code", data.requestCode()))
			return &Result{Event: event.Event, Reason: "no matching invoice"}, nil
		}
		return nil, err
	}

	// Fast-path replay check; the unique index on payments.reference is
	// the authoritative guard for concurrent deliveries.
	if _, err := s.payments.GetByReference(ctx, data.Reference); err == nil {
		return &Result{Event: event.Event, Duplicate: true}, nil
	} else if !errors.Is(err, domainerr.ErrNotFound) {
		return nil, err
	}

	paidAt := s.now()
	if data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			paidAt = t
		}
	}

	payment := &models.Payment{
		InvoiceID: inv.ID,
		Reference: data.Reference,
		Amount:    inv.TotalAmount,
		Fee:       inv.Fee,
		NetAmount: inv.Amount,
		Channel:   data.Channel,
		Status:    models.PaymentStatusSuccess,
	}

	applied, err := s.ledger.MarkPaid(ctx, inv.ID, paidAt, payment, actorGateway)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Event: event.Event, Duplicate: true}, nil
	}

	s.logger.Info("invoice reconciled as paid",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("reference", data.Reference))
	return &Result{Event: event.Event, Applied: true}, nil
}

func (s *service) applyFailure(ctx context.Context, event Event) (*Result, error) {
	data := event.Data
	if data.Reference == "" {
		return &Result{Event: event.Event, Reason: "missing reference"}, nil
	}

	// Deliveries are unordered: a failure event can arrive after the
	// success that reconciled the same reference. A SUCCESS payment is
	// final, so the late failure is acknowledged without touching it.
	existing, err := s.payments.GetByReference(ctx, data.Reference)
	if err != nil {
		if errors.Is(err, domainerr.ErrNotFound) {
			s.logger.Warn("failure event for unknown payment acknowledged",
				zap.String("reference", data.Reference))
			return &Result{Event: event.Event, Reason: "no matching payment"}, nil
		}
		return nil, err
	}
	if existing.Status == models.PaymentStatusSuccess {
		s.logger.Warn("failure event for reconciled payment acknowledged",
			zap.String("reference", data.Reference))
		return &Result{Event: event.Event, Duplicate: true, Reason: "payment already reconciled"}, nil
	}

	audit := repositories.NewAuditRecord(actorGateway, "payment", data.Reference, "mark_failed",
		models.JSON{"status": existing.Status},
		models.JSON{"status": models.PaymentStatusFailed, "reason": data.Reason})

	found, err := s.payments.MarkFailed(ctx, data.Reference, data.Reason, audit)
	if err != nil {
		return nil, err
	}
	if !found {
		// Lost a race with a concurrent success reconciliation; the
		// repository's status guard kept the payment intact.
		return &Result{Event: event.Event, Duplicate: true, Reason: "payment already reconciled"}, nil
	}
	return &Result{Event: event.Event, Applied: true}, nil
}
