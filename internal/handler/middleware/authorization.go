package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

// RequirePrivileged gates operator-only routes. Must run after
// AuthMiddleware.
func RequirePrivileged() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := c.Locals("identity").(*domain.Identity)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}

		if !identity.Privileged {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "privileged access required",
			})
		}

		return c.Next()
	}
}
