// Package payout schedules and executes transfers of earned balance to
// merchant destinations, including re-scheduling recurring payouts.
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainerr "payrail/internal/errors"
	"payrail/internal/models"
	"payrail/internal/repositories"
	"payrail/internal/services/sequence"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	createRetries  = 3
	actorScheduler = "scheduler"
)

var hundred = decimal.NewFromInt(100)

type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Payout, error)
	Get(ctx context.Context, id uint) (*models.Payout, error)
	List(ctx context.Context, merchantID uint, limit, offset int) ([]models.Payout, error)

	// ProcessDue executes every PENDING payout scheduled at or before
	// now. Each payout is its own transactional unit; the caller gets a
	// per-payout result list, never an all-or-nothing outcome.
	ProcessDue(ctx context.Context, now time.Time) ([]ProcessResult, error)

	// StuckProcessing lists payouts held in PROCESSING longer than the
	// timeout. They are indeterminate and need rail reconciliation, not
	// an automatic FAILED.
	StuckProcessing(ctx context.Context, timeout time.Duration) ([]models.Payout, error)
}

type service struct {
	payouts   repositories.PayoutRepository
	methods   repositories.PayoutMethodRepository
	directory repositories.MerchantDirectory
	resolver  TierResolver
	sequencer sequence.Service
	rails     *Registry
	balances  BalanceInvalidator
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	payouts repositories.PayoutRepository,
	methods repositories.PayoutMethodRepository,
	directory repositories.MerchantDirectory,
	resolver TierResolver,
	sequencer sequence.Service,
	rails *Registry,
	balances BalanceInvalidator,
	logger *zap.Logger,
) Service {
	if payouts == nil {
		panic("payout repository is required")
	}
	if methods == nil {
		panic("payout method repository is required")
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
	if rails == nil {
		panic("rail registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		payouts:   payouts,
		methods:   methods,
		directory: directory,
		resolver:  resolver,
		sequencer: sequencer,
		rails:     rails,
		balances:  balances,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Payout, error) {
	if !input.Amount.IsPositive() {
		return nil, domainerr.ErrValidation.WithDetail("amount must be positive")
	}
	if !validFrequency(input.Frequency) {
		return nil, domainerr.ErrValidation.WithDetail("unknown frequency %q", input.Frequency)
	}

	method, err := s.methods.GetPayoutMethod(ctx, input.PayoutMethodID)
	if err != nil {
		return nil, err
	}
	if method.MerchantID != input.MerchantID {
		return nil, domainerr.ErrNotFound.WithDetail(
			"payout method %d does not belong to merchant %d", method.ID, input.MerchantID)
	}

	feePercent, err := s.payoutFeePercent(ctx, input.MerchantID)
	if err != nil {
		return nil, err
	}
	fee := input.Amount.Mul(feePercent).Div(hundred).Round(2)

	now := s.now()
	payout := &models.Payout{
		MerchantID:     input.MerchantID,
		PayoutMethodID: method.ID,
		Amount:         input.Amount,
		Fee:            fee,
		NetAmount:      input.Amount.Sub(fee),
		Status:         models.PayoutStatusPending,
		Frequency:      input.Frequency,
		ScheduledFor:   nextSchedule(input.Frequency, now),
	}

	if err := s.persist(ctx, payout, input.Actor); err != nil {
		return nil, err
	}

	if s.balances != nil {
		s.balances.Invalidate(ctx, payout.MerchantID)
	}
	s.logger.Info("payout scheduled",
		zap.String("reference", payout.Reference),
		zap.Uint("merchant_id", payout.MerchantID),
		zap.String("amount", payout.Amount.StringFixed(2)),
		zap.Time("scheduled_for", payout.ScheduledFor))
	return payout, nil
}

// persist mints a reference and inserts the payout, retrying on the
// backstop unique index. Balance authorization happens inside the
// repository under the merchant row lock.
func (s *service) persist(ctx context.Context, payout *models.Payout, actor string) error {
	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		reference, err := s.sequencer.Next(ctx, sequence.PrefixPayout, s.now())
		if err != nil {
			return err
		}
		payout.Reference = reference

		audit := repositories.NewAuditRecord(actor, "payout", reference, "create",
			nil, models.JSON{
				"merchant_id":   payout.MerchantID,
				"amount":        payout.Amount.String(),
				"frequency":     payout.Frequency,
				"scheduled_for": payout.ScheduledFor,
			})

		if err := s.payouts.CreateAuthorized(ctx, payout, audit); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: payout reference allocation kept colliding: %v",
		domainerr.ErrConflict, lastErr)
}

func (s *service) Get(ctx context.Context, id uint) (*models.Payout, error) {
	return s.payouts.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, merchantID uint, limit, offset int) ([]models.Payout, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.payouts.ListByMerchant(ctx, merchantID, limit, offset)
}

func (s *service) ProcessDue(ctx context.Context, now time.Time) ([]ProcessResult, error) {
	due, err := s.payouts.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	results := make([]ProcessResult, 0, len(due))
	for i := range due {
		payout := due[i]

		claimed, err := s.payouts.Claim(ctx, payout.ID)
		if err != nil {
			results = append(results, ProcessResult{
				PayoutID:  payout.ID,
				Reference: payout.Reference,
				Outcome:   OutcomeFailed,
				Error:     err.Error(),
			})
			continue
		}
		if !claimed {
			// Another processor owns it.
			continue
		}

		results = append(results, s.processClaimed(ctx, &payout, now))
	}
	return results, nil
}

// processClaimed takes a payout already moved to PROCESSING through its
// terminal state. Every exit path leaves the payout in a definite state;
// errors are recorded on the payout and in the result, never propagated
// to abort the batch.
func (s *service) processClaimed(ctx context.Context, payout *models.Payout, now time.Time) ProcessResult {
	result := ProcessResult{PayoutID: payout.ID, Reference: payout.Reference}

	feePercent, err := s.payoutFeePercent(ctx, payout.MerchantID)
	if err != nil {
		return s.fail(ctx, payout, result, err)
	}

	if err := s.payouts.AuthorizeProcessing(ctx, payout, feePercent); err != nil {
		if errors.Is(err, domainerr.ErrInsufficientBalance) && payout.Sweep() && payout.Recurring() {
			// An empty-balance sweep is not a failure: push it one
			// period forward so the recurrence stays alive.
			return s.reschedule(ctx, payout, result, now)
		}
		return s.fail(ctx, payout, result, err)
	}

	method, err := s.methods.GetPayoutMethod(ctx, payout.PayoutMethodID)
	if err != nil {
		return s.fail(ctx, payout, result, err)
	}

	rail, err := s.rails.For(method.Type)
	if err != nil {
		return s.fail(ctx, payout, result, domainerr.ErrTransportFailure.WithDetail("%v", err))
	}

	railRef, err := rail.Transfer(ctx, payout, method)
	if err != nil {
		return s.fail(ctx, payout, result, err)
	}

	audit := repositories.NewAuditRecord(actorScheduler, "payout", payout.Reference, "complete",
		models.JSON{"status": models.PayoutStatusProcessing},
		models.JSON{"status": models.PayoutStatusCompleted, "rail_reference": railRef})

	if err := s.payouts.Finalize(ctx, payout.ID, models.PayoutStatusCompleted, railRef, "", now, audit); err != nil {
		// The transfer went out but the completion write failed. The
		// payout stays PROCESSING for the stuck-payout report; the rail
		// idempotency key protects a later re-dispatch.
		s.logger.Error("failed to finalize completed payout",
			zap.String("reference", payout.Reference), zap.Error(err))
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}

	if s.balances != nil {
		s.balances.Invalidate(ctx, payout.MerchantID)
	}

	if payout.Recurring() {
		s.enqueueNext(ctx, payout, now)
	}

	s.logger.Info("payout completed",
		zap.String("reference", payout.Reference),
		zap.String("rail_reference", railRef),
		zap.String("net_amount", payout.NetAmount.StringFixed(2)))
	result.Outcome = OutcomeCompleted
	return result
}

func (s *service) fail(ctx context.Context, payout *models.Payout, result ProcessResult, cause error) ProcessResult {
	audit := repositories.NewAuditRecord(actorScheduler, "payout", payout.Reference, "fail",
		models.JSON{"status": models.PayoutStatusProcessing},
		models.JSON{"status": models.PayoutStatusFailed, "reason": cause.Error()})

	if err := s.payouts.Finalize(ctx, payout.ID, models.PayoutStatusFailed, "", cause.Error(), s.now(), audit); err != nil {
		s.logger.Error("failed to mark payout failed",
			zap.String("reference", payout.Reference), zap.Error(err))
	}
	if s.balances != nil {
		s.balances.Invalidate(ctx, payout.MerchantID)
	}

	s.logger.Warn("payout failed",
		zap.String("reference", payout.Reference), zap.Error(cause))
	result.Outcome = OutcomeFailed
	result.Error = cause.Error()
	return result
}

func (s *service) reschedule(ctx context.Context, payout *models.Payout, result ProcessResult, now time.Time) ProcessResult {
	next := nextSchedule(payout.Frequency, now)
	audit := repositories.NewAuditRecord(actorScheduler, "payout", payout.Reference, "reschedule",
		models.JSON{"scheduled_for": payout.ScheduledFor},
		models.JSON{"scheduled_for": next, "reason": "no balance to sweep"})

	if err := s.payouts.Reschedule(ctx, payout.ID, next, audit); err != nil {
		return s.fail(ctx, payout, result, err)
	}

	s.logger.Info("empty sweep rescheduled",
		zap.String("reference", payout.Reference), zap.Time("next", next))
	result.Outcome = OutcomeRescheduled
	return result
}

// enqueueNext creates the next occurrence of a recurring payout as a
// sweep: the amount stays zero until execution time, when it resolves
// from the balance then available.
func (s *service) enqueueNext(ctx context.Context, prev *models.Payout, now time.Time) {
	next := &models.Payout{
		MerchantID:     prev.MerchantID,
		PayoutMethodID: prev.PayoutMethodID,
		Amount:         decimal.Zero,
		Fee:            decimal.Zero,
		NetAmount:      decimal.Zero,
		Currency:       prev.Currency,
		Status:         models.PayoutStatusPending,
		Frequency:      prev.Frequency,
		ScheduledFor:   nextSchedule(prev.Frequency, now),
	}

	if err := s.persist(ctx, next, actorScheduler); err != nil {
		s.logger.Error("failed to enqueue recurring payout",
			zap.String("previous", prev.Reference), zap.Error(err))
		return
	}
	s.logger.Info("recurring payout enqueued",
		zap.String("previous", prev.Reference),
		zap.String("reference", next.Reference),
		zap.Time("scheduled_for", next.ScheduledFor))
}

func (s *service) StuckProcessing(ctx context.Context, timeout time.Duration) ([]models.Payout, error) {
	return s.payouts.StuckProcessing(ctx, s.now().Add(-timeout))
}

func (s *service) payoutFeePercent(ctx context.Context, merchantID uint) (decimal.Decimal, error) {
	metrics, err := s.directory.Metrics(ctx, merchantID, s.now())
	if err != nil {
		return decimal.Zero, err
	}
	tier, err := s.resolver.Resolve(ctx, metrics)
	if err != nil {
		return decimal.Zero, err
	}
	return tier.PayoutFeePercent, nil
}

func validFrequency(f string) bool {
	switch f {
	case models.PayoutFrequencyOnce, models.PayoutFrequencyDaily,
		models.PayoutFrequencyWeekly, models.PayoutFrequencyMonthly:
		return true
	}
	return false
}

// nextSchedule computes when a payout of the given frequency runs next.
// ONCE defaults to the next day, same as DAILY.
func nextSchedule(frequency string, from time.Time) time.Time {
	switch frequency {
	case models.PayoutFrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case models.PayoutFrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}
