package handlers

import (
	"payrail/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck reports process and database liveness.
func HealthCheck(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}

	if repositories.DB != nil {
		if sqlDB, err := repositories.DB.DB(); err != nil || sqlDB.Ping() != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
		status["database"] = "ok"
	}
	return c.JSON(status)
}
