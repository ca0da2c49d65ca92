package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
)

type SessionHandler struct {
	authService *service.AuthService
}

func NewSessionHandler(authService *service.AuthService) *SessionHandler {
	return &SessionHandler{authService: authService}
}

// List returns the caller's active sessions
// GET /api/v1/sessions
func (h *SessionHandler) List(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	sessions, err := h.authService.ListSessions(c.Context(), identity.ID)
	if err != nil {
		return fail(c, err)
	}

	current, _ := c.Locals("session").(*domain.Session)

	items := make([]fiber.Map, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, fiber.Map{
			"id":               s.ID,
			"ip_address":       s.IPAddress,
			"user_agent":       s.UserAgent,
			"country":          s.Country,
			"created_at":       s.CreatedAt,
			"last_activity_at": s.LastActivityAt,
			"expires_at":       s.ExpiresAt,
			"current":          current != nil && current.ID == s.ID,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"sessions": items})
}

// Revoke terminates one of the caller's sessions
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) Revoke(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid session id")
	}

	if err := h.authService.RevokeSession(c.Context(), identity.ID, sessionID); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Session revoked",
	})
}

// RevokeAll terminates every session for the caller, including the
// current one
// DELETE /api/v1/sessions
func (h *SessionHandler) RevokeAll(c *fiber.Ctx) error {
	token, ok := c.Locals("session_token").(string)
	if !ok || token == "" {
		return fail(c, service.ErrSessionNotFound)
	}

	if err := h.authService.Logout(c.Context(), token, requestContext(c)); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "All sessions revoked",
	})
}
