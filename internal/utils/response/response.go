package response

import (
	stderrors "errors"

	"payrail/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func ServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

func Unauthorized(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnauthorized, "Unauthorized")
}

// DomainError maps a service error onto an HTTP status using the
// domain error taxonomy, falling back to 500 for unknown errors.
func DomainError(c *fiber.Ctx, err error) error {
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return Error(c, fiber.StatusNotFound, err.Error())
	case stderrors.Is(err, errors.ErrInvalidState):
		return Error(c, fiber.StatusConflict, err.Error())
	case stderrors.Is(err, errors.ErrUnauthorized):
		return Error(c, fiber.StatusUnauthorized, err.Error())
	case stderrors.Is(err, errors.ErrInsufficientBalance):
		return Error(c, fiber.StatusUnprocessableEntity, err.Error())
	case stderrors.Is(err, errors.ErrConflict):
		return Error(c, fiber.StatusConflict, err.Error())
	case stderrors.Is(err, errors.ErrTransportFailure):
		return Error(c, fiber.StatusBadGateway, err.Error())
	case stderrors.Is(err, errors.ErrValidation):
		return BadRequest(c, err.Error())
	default:
		return ServerError(c, "internal error")
	}
}
