// Package middleware provides HTTP middleware for the API surface.
package middleware

import (
	"strings"

	"payrail/internal/config"
	"payrail/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Auth validates the bearer token and stores the merchant claims on the
// request context.
func Auth() fiber.Handler {
	secret := []byte(config.GetEnv("JWT_SECRET", "payrail-dev-secret"))

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.ParseWithClaims(tokenString, &models.MerchantClaims{}, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		claims, ok := token.Claims.(*models.MerchantClaims)
		if !ok || claims.MerchantID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid claims"})
		}

		c.Locals("claims", claims)
		c.Locals("merchantID", claims.MerchantID)
		return c.Next()
	}
}

// MerchantID pulls the authenticated merchant out of the context.
func MerchantID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("merchantID").(uint); ok {
		return id
	}
	return 0
}

// Actor renders the authenticated principal for audit records.
func Actor(c *fiber.Ctx) string {
	claims, ok := c.Locals("claims").(*models.MerchantClaims)
	if !ok {
		return "unknown"
	}
	if claims.Subject != "" {
		return claims.Subject
	}
	return "merchant"
}
