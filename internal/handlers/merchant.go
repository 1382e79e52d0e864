package handlers

import (
	"payrail/internal/middleware"
	"payrail/internal/models"
	"payrail/internal/repositories"
	"payrail/internal/services/balance"
	"payrail/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type MerchantHandler struct {
	balanceService balance.Service
	methods        repositories.PayoutMethodRepository
}

func NewMerchantHandler(balanceSvc balance.Service, methods repositories.PayoutMethodRepository) *MerchantHandler {
	return &MerchantHandler{
		balanceService: balanceSvc,
		methods:        methods,
	}
}

// GetBalance returns the merchant's currently withdrawable balance.
func (h *MerchantHandler) GetBalance(c *fiber.Ctx) error {
	available, err := h.balanceService.Available(c.Context(), middleware.MerchantID(c))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Available balance", fiber.Map{
		"available": available.StringFixed(2),
	})
}

func (h *MerchantHandler) ListPayoutMethods(c *fiber.Ctx) error {
	methods, err := h.methods.ListPayoutMethods(c.Context(), middleware.MerchantID(c))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Payout methods", methods)
}

func (h *MerchantHandler) CreatePayoutMethod(c *fiber.Ctx) error {
	var input struct {
		Type          string `json:"type"`
		BankName      string `json:"bank_name"`
		BankCode      string `json:"bank_code"`
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
		PhoneNumber   string `json:"phone_number"`
		Provider      string `json:"provider"`
		IsDefault     bool   `json:"is_default"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Type != models.PayoutMethodBank && input.Type != models.PayoutMethodMobileMoney {
		return response.BadRequest(c, "type must be bank or mobile_money")
	}

	method := &models.PayoutMethod{
		MerchantID:    middleware.MerchantID(c),
		Type:          input.Type,
		BankName:      input.BankName,
		BankCode:      input.BankCode,
		AccountNumber: input.AccountNumber,
		AccountName:   input.AccountName,
		PhoneNumber:   input.PhoneNumber,
		Provider:      input.Provider,
		IsDefault:     input.IsDefault,
	}
	if err := h.methods.CreatePayoutMethod(c.Context(), method); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Payout method added", method)
}

// SetDefaultPayoutMethod flips the default destination. The repository
// clears and sets inside one transaction, so at most one default exists
// at any instant.
func (h *MerchantHandler) SetDefaultPayoutMethod(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid payout method id")
	}

	if err := h.methods.SetDefaultPayoutMethod(c.Context(), middleware.MerchantID(c), uint(id)); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Default payout method updated", nil)
}
