package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	domainerr "payrail/internal/errors"
	"payrail/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("whsec_test_secret")

func sign(payload []byte) string {
	mac := hmac.New(sha512.New, testSecret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetByRequestCode(ctx context.Context, code string) (*models.Invoice, error) {
	args := m.Called(ctx, code)
	if v := args.Get(0); v != nil {
		return v.(*models.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedger) MarkPaid(ctx context.Context, invoiceID uint, paidAt time.Time, payment *models.Payment, actor string) (bool, error) {
	args := m.Called(ctx, invoiceID, paidAt, payment, actor)
	return args.Bool(0), args.Error(1)
}

type MockPaymentRepo struct {
	mock.Mock
}

func (m *MockPaymentRepo) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	args := m.Called(ctx, reference)
	if v := args.Get(0); v != nil {
		return v.(*models.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepo) ListByInvoice(ctx context.Context, invoiceID uint) ([]models.Payment, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockPaymentRepo) MarkFailed(ctx context.Context, reference, reason string, audit *models.AuditRecord) (bool, error) {
	args := m.Called(ctx, reference, reason, audit)
	return args.Bool(0), args.Error(1)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func paidInvoicePayload(event, reference, requestCode string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"data":{"reference":%q,"request_code":%q,"amount":"10250","channel":"card","paid_at":"2026-08-31T12:00:00Z"}}`,
		event, reference, requestCode))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)

	assert.True(t, VerifySignature(testSecret, payload, sign(payload)))
	assert.False(t, VerifySignature(testSecret, payload, sign([]byte("other"))))
	assert.False(t, VerifySignature(testSecret, payload, "not-hex"))
	assert.False(t, VerifySignature(testSecret, payload, ""))
	assert.False(t, VerifySignature(nil, payload, sign(payload)))
}

func TestHandle_RejectsBadSignature(t *testing.T) {
	ledger := new(MockLedger)
	payments := new(MockPaymentRepo)
	svc := NewService(testSecret, ledger, payments, zap.NewNop())

	payload := paidInvoicePayload(EventChargeSuccess, "ref_001", "PRQ_abc")
	_, err := svc.Handle(context.Background(), payload, "deadbeef")
	assert.ErrorIs(t, err, domainerr.ErrUnauthorized)
	ledger.AssertNotCalled(t, "GetByRequestCode", mock.Anything, mock.Anything)
}

func TestHandle_RejectsMalformedPayload(t *testing.T) {
	svc := NewService(testSecret, new(MockLedger), new(MockPaymentRepo), zap.NewNop())

	payload := []byte(`{"event":`)
	_, err := svc.Handle(context.Background(), payload, sign(payload))
	assert.ErrorIs(t, err, domainerr.ErrValidation)
}

func TestHandle_Success(t *testing.T) {
	inv := &models.Invoice{
		ID:            42,
		InvoiceNumber: "INV-20260831-0001",
		MerchantID:    1,
		Amount:        dec("10000"),
		Fee:           dec("250"),
		TotalAmount:   dec("10250"),
		Status:        models.InvoiceStatusPending,
	}

	t.Run("marks invoice paid with gateway amounts", func(t *testing.T) {
		ledger := new(MockLedger)
		payments := new(MockPaymentRepo)
		svc := NewService(testSecret, ledger, payments, zap.NewNop())

		payments.On("GetByReference", mock.Anything, "ref_001").
			Return(nil, domainerr.ErrNotFound)
		ledger.On("GetByRequestCode", mock.Anything, "PRQ_abc").Return(inv, nil)
		ledger.On("MarkPaid", mock.Anything, uint(42),
			time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
			mock.MatchedBy(func(p *models.Payment) bool {
				return p.Reference == "ref_001" &&
					p.Amount.Equal(dec("10250")) &&
					p.Fee.Equal(dec("250")) &&
					p.NetAmount.Equal(dec("10000")) &&
					p.Status == models.PaymentStatusSuccess
			}), "gateway").
			Return(true, nil)

		result, err := svc.Handle(context.Background(),
			paidInvoicePayload(EventChargeSuccess, "ref_001", "PRQ_abc"),
			sign(paidInvoicePayload(EventChargeSuccess, "ref_001", "PRQ_abc")))
		require.NoError(t, err)
		assert.True(t, result.Applied)
		ledger.AssertExpectations(t)
	})

	t.Run("replayed delivery is acknowledged once", func(t *testing.T) {
		ledger := new(MockLedger)
		payments := new(MockPaymentRepo)
		svc := NewService(testSecret, ledger, payments, zap.NewNop())

		ledger.On("GetByRequestCode", mock.Anything, "PRQ_abc").Return(inv, nil)
		payments.On("GetByReference", mock.Anything, "ref_001").
			Return(&models.Payment{Reference: "ref_001"}, nil)

		payload := paidInvoicePayload(EventChargeSuccess, "ref_001", "PRQ_abc")
		result, err := svc.Handle(context.Background(), payload, sign(payload))
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.True(t, result.Duplicate)
		ledger.AssertNotCalled(t, "MarkPaid",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already paid invoice reports duplicate", func(t *testing.T) {
		ledger := new(MockLedger)
		payments := new(MockPaymentRepo)
		svc := NewService(testSecret, ledger, payments, zap.NewNop())

		ledger.On("GetByRequestCode", mock.Anything, "PRQ_abc").Return(inv, nil)
		payments.On("GetByReference", mock.Anything, "ref_002").
			Return(nil, domainerr.ErrNotFound)
		ledger.On("MarkPaid", mock.Anything, uint(42), mock.Anything, mock.Anything, "gateway").
			Return(false, nil)

		payload := paidInvoicePayload(EventPaymentRequestSuccess, "ref_002", "PRQ_abc")
		result, err := svc.Handle(context.Background(), payload, sign(payload))
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.True(t, result.Duplicate)
	})

	t.Run("unknown invoice is acknowledged, not errored", func(t *testing.T) {
		ledger := new(MockLedger)
		payments := new(MockPaymentRepo)
		svc := NewService(testSecret, ledger, payments, zap.NewNop())

		ledger.On("GetByRequestCode", mock.Anything, "PRQ_gone").
			Return(nil, domainerr.ErrNotFound)

		payload := paidInvoicePayload(EventChargeSuccess, "ref_003", "PRQ_gone")
		result, err := svc.Handle(context.Background(), payload, sign(payload))
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.Equal(t, "no matching invoice", result.Reason)
	})
}

func TestHandle_Pending(t *testing.T) {
	ledger := new(MockLedger)
	payments := new(MockPaymentRepo)
	svc := NewService(testSecret, ledger, payments, zap.NewNop())

	payload := paidInvoicePayload(EventPaymentRequestPending, "ref_004", "PRQ_abc")
	result, err := svc.Handle(context.Background(), payload, sign(payload))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	ledger.AssertNotCalled(t, "MarkPaid",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_UnknownEventDropped(t *testing.T) {
	svc := NewService(testSecret, new(MockLedger), new(MockPaymentRepo), zap.NewNop())

	payload := []byte(`{"event":"subscription.create","data":{}}`)
	result, err := svc.Handle(context.Background(), payload, sign(payload))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, "unknown event", result.Reason)
}

func TestHandle_Failure(t *testing.T) {
	t.Run("marks payment failed", func(t *testing.T) {
		payments := new(MockPaymentRepo)
		svc := NewService(testSecret, new(MockLedger), payments, zap.NewNop())

		payments.On("GetByReference", mock.Anything, "ref_005").
			Return(&models.Payment{Reference: "ref_005", Status: models.PaymentStatusFailed}, nil)
		payments.On("MarkFailed", mock.Anything, "ref_005", "insufficient funds", mock.Anything).
			Return(true, nil)

		payload := []byte(`{"event":"payment.failed","data":{"reference":"ref_005","reason":"insufficient funds"}}`)
		result, err := svc.Handle(context.Background(), payload, sign(payload))
		require.NoError(t, err)
		assert.True(t, result.Applied)
		payments.AssertExpectations(t)
	})

	t.Run("unknown payment is acknowledged", func(t *testing.T) {
		payments := new(MockPaymentRepo)
		svc := NewService(testSecret, new(MockLedger), payments, zap.NewNop())

		payments.On("GetByReference", mock.Anything, "ref_006").
			Return(nil, domainerr.ErrNotFound)

		payload := []byte(`{"event":"payment.failed","data":{"reference":"ref_006"}}`)
		result, err := svc.Handle(context.Background(), payload, sign(payload))
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.Equal(t, "no matching payment", result.Reason)
		payments.AssertNotCalled(t, "MarkFailed",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("late failure never downgrades a reconciled payment", func(t *testing.T) {
		payments := new(MockPaymentRepo)
		svc := NewService(testSecret, new(MockLedger), payments, zap.NewNop())

		payments.On("GetByReference", mock.Anything, "ref_001").
			Return(&models.Payment{Reference: "ref_001", Status: models.PaymentStatusSuccess}, nil)

		payload := []byte(`{"event":"payment.failed","data":{"reference":"ref_001","reason":"timeout"}}`)
		result, err := svc.Handle(context.Background(), payload, sign(payload))
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.True(t, result.Duplicate)
		payments.AssertNotCalled(t, "MarkFailed",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent reconciliation wins over the failure write", func(t *testing.T) {
		payments := new(MockPaymentRepo)
		svc := NewService(testSecret, new(MockLedger), payments, zap.NewNop())

		// The read sees a not-yet-final payment, but the guarded update
		// matches nothing because a success landed in between.
		payments.On("GetByReference", mock.Anything, "ref_007").
			Return(&models.Payment{Reference: "ref_007", Status: models.PaymentStatusFailed}, nil)
		payments.On("MarkFailed", mock.Anything, "ref_007", "declined", mock.Anything).
			Return(false, nil)

		payload := []byte(`{"event":"payment.failed","data":{"reference":"ref_007","reason":"declined"}}`)
		result, err := svc.Handle(context.Background(), payload, sign(payload))
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.True(t, result.Duplicate)
	})
}
