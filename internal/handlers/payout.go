package handlers

import (
	"time"

	"payrail/internal/middleware"
	"payrail/internal/models"
	"payrail/internal/services/payout"
	"payrail/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type PayoutHandler struct {
	payoutService payout.Service
}

func NewPayoutHandler(payoutSvc payout.Service) *PayoutHandler {
	return &PayoutHandler{payoutService: payoutSvc}
}

// CreatePayout schedules a payout against the merchant's available balance.
func (h *PayoutHandler) CreatePayout(c *fiber.Ctx) error {
	var input struct {
		PayoutMethodID uint            `json:"payout_method_id"`
		Amount         decimal.Decimal `json:"amount"`
		Frequency      string          `json:"frequency"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Frequency == "" {
		input.Frequency = models.PayoutFrequencyOnce
	}

	p, err := h.payoutService.Create(c.Context(), payout.CreateInput{
		MerchantID:     middleware.MerchantID(c),
		PayoutMethodID: input.PayoutMethodID,
		Amount:         input.Amount,
		Frequency:      input.Frequency,
		Actor:          middleware.Actor(c),
	})
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Payout scheduled", p)
}

func (h *PayoutHandler) GetPayout(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid payout id")
	}

	p, err := h.payoutService.Get(c.Context(), uint(id))
	if err != nil {
		return response.DomainError(c, err)
	}
	if p.MerchantID != middleware.MerchantID(c) {
		return response.Error(c, fiber.StatusNotFound, "payout not found")
	}
	return response.Success(c, "Payout", p)
}

func (h *PayoutHandler) ListPayouts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	payouts, err := h.payoutService.List(c.Context(), middleware.MerchantID(c), limit, offset)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Payouts", payouts)
}

// ProcessDue triggers a sweep of due payouts. Normally the cron worker
// drives this; the endpoint exists for operational runs.
func (h *PayoutHandler) ProcessDue(c *fiber.Ctx) error {
	results, err := h.payoutService.ProcessDue(c.Context(), time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Due payouts processed", results)
}
