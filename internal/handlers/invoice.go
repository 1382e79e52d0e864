package handlers

import (
	"payrail/internal/middleware"
	"payrail/internal/services/invoice"
	"payrail/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type InvoiceHandler struct {
	invoiceService invoice.Service
}

func NewInvoiceHandler(invoiceSvc invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceSvc}
}

// CreateInvoice issues a new PENDING invoice for the authenticated merchant.
func (h *InvoiceHandler) CreateInvoice(c *fiber.Ctx) error {
	var input struct {
		OutletID      uint            `json:"outlet_id"`
		CategoryID    *uint           `json:"category_id"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
		CustomerName  string          `json:"customer_name"`
		CustomerPhone string          `json:"customer_phone"`
		Description   string          `json:"description"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	inv, err := h.invoiceService.Create(c.Context(), invoice.CreateInput{
		MerchantID:    middleware.MerchantID(c),
		OutletID:      input.OutletID,
		CategoryID:    input.CategoryID,
		Amount:        input.Amount,
		Currency:      input.Currency,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		Description:   input.Description,
		Actor:         middleware.Actor(c),
	})
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Invoice created", inv)
}

func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid invoice id")
	}

	inv, err := h.invoiceService.Get(c.Context(), uint(id))
	if err != nil {
		return response.DomainError(c, err)
	}
	if inv.MerchantID != middleware.MerchantID(c) {
		return response.Error(c, fiber.StatusNotFound, "invoice not found")
	}
	return response.Success(c, "Invoice", inv)
}

func (h *InvoiceHandler) ListInvoices(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	invoices, err := h.invoiceService.List(c.Context(), middleware.MerchantID(c), limit, offset)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Invoices", invoices)
}

func (h *InvoiceHandler) CancelInvoice(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid invoice id")
	}

	inv, err := h.invoiceService.Get(c.Context(), uint(id))
	if err != nil {
		return response.DomainError(c, err)
	}
	if inv.MerchantID != middleware.MerchantID(c) {
		return response.Error(c, fiber.StatusNotFound, "invoice not found")
	}

	cancelled, err := h.invoiceService.Cancel(c.Context(), uint(id), middleware.Actor(c))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Invoice cancelled", cancelled)
}

func (h *InvoiceHandler) UpdateInvoice(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid invoice id")
	}

	var input struct {
		CustomerName  *string `json:"customer_name"`
		CustomerPhone *string `json:"customer_phone"`
		Description   *string `json:"description"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	inv, err := h.invoiceService.Get(c.Context(), uint(id))
	if err != nil {
		return response.DomainError(c, err)
	}
	if inv.MerchantID != middleware.MerchantID(c) {
		return response.Error(c, fiber.StatusNotFound, "invoice not found")
	}

	updated, err := h.invoiceService.Update(c.Context(), uint(id), invoice.UpdateInput{
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		Description:   input.Description,
		Actor:         middleware.Actor(c),
	})
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Invoice updated", updated)
}
