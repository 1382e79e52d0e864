package invoice

import (
	"context"
	"testing"
	"time"

	domainerr "payrail/internal/errors"
	"payrail/internal/gateway"
	"payrail/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MockInvoiceRepo struct {
	mock.Mock
}

func (m *MockInvoiceRepo) Create(ctx context.Context, inv *models.Invoice, audit *models.AuditRecord) error {
	args := m.Called(ctx, inv, audit)
	return args.Error(0)
}

func (m *MockInvoiceRepo) GetByID(ctx context.Context, id uint) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if inv := args.Get(0); inv != nil {
		return inv.(*models.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvoiceRepo) GetByRequestCode(ctx context.Context, code string) (*models.Invoice, error) {
	args := m.Called(ctx, code)
	if inv := args.Get(0); inv != nil {
		return inv.(*models.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvoiceRepo) SetRequestCode(ctx context.Context, invoiceID uint, code string) error {
	args := m.Called(ctx, invoiceID, code)
	return args.Error(0)
}

func (m *MockInvoiceRepo) Delete(ctx context.Context, invoiceID uint, audit *models.AuditRecord) error {
	args := m.Called(ctx, invoiceID, audit)
	return args.Error(0)
}

func (m *MockInvoiceRepo) ListByMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.Invoice, error) {
	args := m.Called(ctx, merchantID, limit, offset)
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepo) ApplyPayment(ctx context.Context, invoiceID uint, paidAt time.Time, payment *models.Payment, audit *models.AuditRecord) (bool, error) {
	args := m.Called(ctx, invoiceID, paidAt, payment, audit)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepo) Transition(ctx context.Context, invoiceID uint, allowed []string, to string, audit *models.AuditRecord) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID, allowed, to, audit)
	if inv := args.Get(0); inv != nil {
		return inv.(*models.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvoiceRepo) UpdateFields(ctx context.Context, invoiceID uint, fields map[string]interface{}, audit *models.AuditRecord) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID, fields, audit)
	if inv := args.Get(0); inv != nil {
		return inv.(*models.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) GetMerchant(ctx context.Context, id uint) (*models.Merchant, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Merchant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) GetOutlet(ctx context.Context, id uint) (*models.Outlet, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Outlet), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) CountActiveTerminals(ctx context.Context, outletID uint) (int64, error) {
	args := m.Called(ctx, outletID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDirectory) GetCategory(ctx context.Context, id uint) (*models.InvoiceCategory, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.InvoiceCategory), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) Metrics(ctx context.Context, merchantID uint, now time.Time) (models.MerchantMetrics, error) {
	args := m.Called(ctx, merchantID, now)
	return args.Get(0).(models.MerchantMetrics), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, metrics models.MerchantMetrics) (*models.Tier, error) {
	args := m.Called(ctx, metrics)
	if v := args.Get(0); v != nil {
		return v.(*models.Tier), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSequencer struct {
	mock.Mock
}

func (m *MockSequencer) Next(ctx context.Context, prefix string, day time.Time) (string, error) {
	args := m.Called(ctx, prefix, day)
	return args.String(0), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePaymentRequest(ctx context.Context, req gateway.PaymentRequestInput) (*gateway.PaymentRequestResult, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*gateway.PaymentRequestResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) Transfer(ctx context.Context, req gateway.TransferInput) (*gateway.TransferResult, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*gateway.TransferResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(ctx context.Context, merchantID uint) {
	m.Called(ctx, merchantID)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	repo      *MockInvoiceRepo
	directory *MockDirectory
	resolver  *MockResolver
	sequencer *MockSequencer
	gateway   *MockGateway
	balances  *MockInvalidator
	svc       Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      new(MockInvoiceRepo),
		directory: new(MockDirectory),
		resolver:  new(MockResolver),
		sequencer: new(MockSequencer),
		gateway:   new(MockGateway),
		balances:  new(MockInvalidator),
	}
	f.svc = NewService(f.repo, f.directory, f.resolver, f.sequencer, f.gateway, f.balances, zap.NewNop())
	return f
}

func (f *fixture) expectHappyLookups() {
	f.directory.On("GetMerchant", mock.Anything, uint(1)).
		Return(&models.Merchant{ID: 1, Status: models.MerchantStatusActive}, nil)
	f.directory.On("GetOutlet", mock.Anything, uint(2)).
		Return(&models.Outlet{ID: 2, MerchantID: 1}, nil)
	f.directory.On("CountActiveTerminals", mock.Anything, uint(2)).Return(int64(3), nil)
	f.directory.On("Metrics", mock.Anything, uint(1), mock.Anything).
		Return(models.MerchantMetrics{}, nil)
	f.resolver.On("Resolve", mock.Anything, mock.Anything).
		Return(&models.Tier{
			Name:       models.TierStandard,
			FeePercent: dec("2.5"),
			FeeMinimum: dec("50"),
			FeeMaximum: dec("2000"),
		}, nil)
}

func TestCreate(t *testing.T) {
	input := CreateInput{
		MerchantID:   1,
		OutletID:     2,
		Amount:       dec("10000"),
		CustomerName: "Ada",
		Actor:        "merchant:1",
	}

	t.Run("prices from resolved tier and persists", func(t *testing.T) {
		f := newFixture(t)
		f.expectHappyLookups()
		f.sequencer.On("Next", mock.Anything, "INV", mock.Anything).
			Return("INV-20260831-0001", nil)
		f.gateway.On("CreatePaymentRequest", mock.Anything, mock.MatchedBy(func(req gateway.PaymentRequestInput) bool {
			return req.InvoiceNumber == "INV-20260831-0001" &&
				req.Amount.Equal(dec("10250")) && req.Currency == "NGN"
		})).Return(&gateway.PaymentRequestResult{RequestCode: "PRQ_abc"}, nil)
		f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Invoice).ID = 42
			}).Return(nil)
		f.repo.On("SetRequestCode", mock.Anything, uint(42), "PRQ_abc").Return(nil)

		inv, err := f.svc.Create(context.Background(), input)
		require.NoError(t, err)

		assert.Equal(t, "INV-20260831-0001", inv.InvoiceNumber)
		assert.Equal(t, "250.00", inv.Fee.StringFixed(2))
		assert.Equal(t, "10250.00", inv.TotalAmount.StringFixed(2))
		assert.Equal(t, models.InvoiceStatusPending, inv.Status)
		assert.Equal(t, models.TierStandard, inv.Tier)
		assert.Equal(t, "PRQ_abc", inv.GatewayRequestCode)
		f.repo.AssertExpectations(t)
	})

	t.Run("category multiplier discounts the fee", func(t *testing.T) {
		f := newFixture(t)
		f.expectHappyLookups()
		categoryID := uint(9)
		f.directory.On("GetCategory", mock.Anything, categoryID).
			Return(&models.InvoiceCategory{ID: 9, Name: "healthcare", FeeMultiplier: dec("0.8")}, nil)
		f.sequencer.On("Next", mock.Anything, "INV", mock.Anything).
			Return("INV-20260831-0002", nil)
		f.gateway.On("CreatePaymentRequest", mock.Anything, mock.Anything).
			Return(&gateway.PaymentRequestResult{RequestCode: "PRQ_med"}, nil)
		f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.repo.On("SetRequestCode", mock.Anything, mock.Anything, "PRQ_med").Return(nil)

		in := input
		in.CategoryID = &categoryID
		inv, err := f.svc.Create(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "200.00", inv.Fee.StringFixed(2))
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		f := newFixture(t)
		in := input
		in.Amount = dec("0")
		_, err := f.svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, domainerr.ErrValidation)
	})

	t.Run("rejects inactive merchant", func(t *testing.T) {
		f := newFixture(t)
		f.directory.On("GetMerchant", mock.Anything, uint(1)).
			Return(&models.Merchant{ID: 1, Status: models.MerchantStatusInactive}, nil)

		_, err := f.svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domainerr.ErrInvalidState)
	})

	t.Run("rejects outlet owned by another merchant", func(t *testing.T) {
		f := newFixture(t)
		f.directory.On("GetMerchant", mock.Anything, uint(1)).
			Return(&models.Merchant{ID: 1, Status: models.MerchantStatusActive}, nil)
		f.directory.On("GetOutlet", mock.Anything, uint(2)).
			Return(&models.Outlet{ID: 2, MerchantID: 99}, nil)

		_, err := f.svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domainerr.ErrNotFound)
	})

	t.Run("rejects outlet without active terminals", func(t *testing.T) {
		f := newFixture(t)
		f.directory.On("GetMerchant", mock.Anything, uint(1)).
			Return(&models.Merchant{ID: 1, Status: models.MerchantStatusActive}, nil)
		f.directory.On("GetOutlet", mock.Anything, uint(2)).
			Return(&models.Outlet{ID: 2, MerchantID: 1}, nil)
		f.directory.On("CountActiveTerminals", mock.Anything, uint(2)).Return(int64(0), nil)

		_, err := f.svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domainerr.ErrInvalidState)
	})

	t.Run("retries on duplicate invoice number", func(t *testing.T) {
		f := newFixture(t)
		f.expectHappyLookups()
		f.sequencer.On("Next", mock.Anything, "INV", mock.Anything).
			Return("INV-20260831-0003", nil).Once()
		f.sequencer.On("Next", mock.Anything, "INV", mock.Anything).
			Return("INV-20260831-0004", nil).Once()
		f.gateway.On("CreatePaymentRequest", mock.Anything, mock.MatchedBy(func(req gateway.PaymentRequestInput) bool {
			return req.InvoiceNumber == "INV-20260831-0004"
		})).Return(&gateway.PaymentRequestResult{RequestCode: "PRQ_dup"}, nil)
		f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
			Return(gorm.ErrDuplicatedKey).Once()
		f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
			Return(nil).Once()
		f.repo.On("SetRequestCode", mock.Anything, mock.Anything, "PRQ_dup").Return(nil)

		inv, err := f.svc.Create(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, "INV-20260831-0004", inv.InvoiceNumber)
		f.sequencer.AssertExpectations(t)
		// The collision retry must not register a second payment request.
		f.gateway.AssertNumberOfCalls(t, "CreatePaymentRequest", 1)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		f := newFixture(t)
		f.expectHappyLookups()
		f.sequencer.On("Next", mock.Anything, "INV", mock.Anything).
			Return("INV-20260831-0005", nil)
		f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
			Return(gorm.ErrDuplicatedKey)

		_, err := f.svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domainerr.ErrConflict)
		f.gateway.AssertNotCalled(t, "CreatePaymentRequest", mock.Anything, mock.Anything)
	})

	t.Run("gateway rejection removes the minted invoice", func(t *testing.T) {
		f := newFixture(t)
		f.expectHappyLookups()
		f.sequencer.On("Next", mock.Anything, "INV", mock.Anything).
			Return("INV-20260831-0006", nil)
		f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Invoice).ID = 77
			}).Return(nil)
		f.gateway.On("CreatePaymentRequest", mock.Anything, mock.Anything).
			Return(nil, domainerr.ErrTransportFailure.WithDetail("gateway timeout"))
		f.repo.On("Delete", mock.Anything, uint(77), mock.Anything).Return(nil)

		_, err := f.svc.Create(context.Background(), input)
		require.Error(t, err)
		f.repo.AssertCalled(t, "Delete", mock.Anything, uint(77), mock.Anything)
		f.repo.AssertNotCalled(t, "SetRequestCode", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMarkPaid(t *testing.T) {
	paidAt := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	payment := &models.Payment{Reference: "ref_001", Amount: dec("10250")}

	t.Run("applies payment and invalidates balance", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByID", mock.Anything, uint(5)).
			Return(&models.Invoice{ID: 5, MerchantID: 1, Status: models.InvoiceStatusPending}, nil)
		f.repo.On("ApplyPayment", mock.Anything, uint(5), paidAt, payment, mock.Anything).
			Return(true, nil)
		f.balances.On("Invalidate", mock.Anything, uint(1)).Return()

		applied, err := f.svc.MarkPaid(context.Background(), 5, paidAt, payment, "gateway")
		require.NoError(t, err)
		assert.True(t, applied)
		f.balances.AssertCalled(t, "Invalidate", mock.Anything, uint(1))
	})

	t.Run("replay is a no-op and skips invalidation", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByID", mock.Anything, uint(5)).
			Return(&models.Invoice{ID: 5, MerchantID: 1, Status: models.InvoiceStatusPaid}, nil)
		f.repo.On("ApplyPayment", mock.Anything, uint(5), paidAt, payment, mock.Anything).
			Return(false, nil)

		applied, err := f.svc.MarkPaid(context.Background(), 5, paidAt, payment, "gateway")
		require.NoError(t, err)
		assert.False(t, applied)
		f.balances.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.repo.On("GetByID", mock.Anything, uint(7)).
		Return(&models.Invoice{ID: 7, InvoiceNumber: "INV-20260831-0007", Status: models.InvoiceStatusPending}, nil)
	f.repo.On("Transition", mock.Anything, uint(7),
		[]string{models.InvoiceStatusPending}, models.InvoiceStatusCancelled, mock.Anything).
		Return(&models.Invoice{ID: 7, Status: models.InvoiceStatusCancelled}, nil)

	inv, err := f.svc.Cancel(context.Background(), 7, "merchant:1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCancelled, inv.Status)
}

func TestList_ClampsLimit(t *testing.T) {
	f := newFixture(t)
	f.repo.On("ListByMerchant", mock.Anything, uint(1), 20, 0).
		Return([]models.Invoice{}, nil)

	_, err := f.svc.List(context.Background(), 1, 500, 0)
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestUpdate_NoFieldsIsNoOp(t *testing.T) {
	f := newFixture(t)
	inv := &models.Invoice{ID: 3, Status: models.InvoiceStatusPending}
	f.repo.On("GetByID", mock.Anything, uint(3)).Return(inv, nil)

	got, err := f.svc.Update(context.Background(), 3, UpdateInput{Actor: "merchant:1"})
	require.NoError(t, err)
	assert.Same(t, inv, got)
	f.repo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
