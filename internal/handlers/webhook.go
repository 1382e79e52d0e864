package handlers

import (
	stderrors "errors"

	domainerr "payrail/internal/errors"
	"payrail/internal/services/webhook"
	"payrail/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type WebhookHandler struct {
	webhookService webhook.Service
}

func NewWebhookHandler(webhookSvc webhook.Service) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookSvc}
}

// HandleGatewayEvent receives gateway webhook deliveries. The raw body
// is handed to the reconciler untouched; signature verification runs
// over exactly the bytes the gateway signed.
func (h *WebhookHandler) HandleGatewayEvent(c *fiber.Ctx) error {
	signature := c.Get(webhook.SignatureHeader)

	result, err := h.webhookService.Handle(c.Context(), c.Body(), signature)
	if err != nil {
		if stderrors.Is(err, domainerr.ErrUnauthorized) {
			return response.Unauthorized(c)
		}
		if stderrors.Is(err, domainerr.ErrValidation) {
			return response.BadRequest(c, err.Error())
		}
		// Transient failure: a non-2xx makes the gateway redeliver,
		// which the idempotency guard absorbs.
		return response.ServerError(c, "failed to process event")
	}
	return response.Success(c, "Event processed", result)
}
