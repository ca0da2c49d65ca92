package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
)

// AuthMiddleware resolves the opaque session token from the
// Authorization header and stores the identity, session, and raw token
// in fiber.Locals for downstream handlers.
func AuthMiddleware(authService *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization header",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization header format",
			})
		}
		token := parts[1]

		identity, session, err := authService.Authenticate(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired session",
			})
		}

		c.Locals("identity", identity)
		c.Locals("session", session)
		c.Locals("session_token", token)

		return c.Next()
	}
}
