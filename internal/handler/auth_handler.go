package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/obs"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validator
	metrics     *obs.Metrics
}

func NewAuthHandler(authService *service.AuthService, validator *validator.Validator, metrics *obs.Metrics) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator,
		metrics:     metrics,
	}
}

// Register creates a new identity
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	identity, err := h.authService.Register(c.Context(), req, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(identity)
}

// Login runs the password stage of authentication
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.authService.Login(c.Context(), req, requestContext(c))
	if err != nil {
		h.metrics.RecordLogin("failure")
		return fail(c, err)
	}

	if result.MFARequired {
		h.metrics.RecordLogin("mfa_challenge")
	} else {
		h.metrics.RecordLogin("success")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// CompleteMFA exchanges a challenge plus second factor for a session
// POST /api/v1/auth/mfa/verify
func (h *AuthHandler) CompleteMFA(c *fiber.Ctx) error {
	var req service.MFARequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.authService.CompleteMFA(c.Context(), req, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// Logout revokes every session and token for the caller
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, ok := c.Locals("session_token").(string)
	if !ok || token == "" {
		return fail(c, service.ErrSessionNotFound)
	}

	if err := h.authService.Logout(c.Context(), token, requestContext(c)); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Logged out successfully",
	})
}

// Me returns the authenticated identity
// GET /api/v1/users/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	return c.Status(fiber.StatusOK).JSON(h.identityResponse(identity))
}

// ChangePassword replaces the password and revokes all sessions
// POST /api/v1/auth/password/change
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=8"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.authService.ChangePassword(c.Context(), identity.ID, req.CurrentPassword, req.NewPassword, requestContext(c)); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Password changed; all sessions revoked",
	})
}

func (h *AuthHandler) identityResponse(identity *domain.Identity) fiber.Map {
	return fiber.Map{
		"id":             identity.ID,
		"display_name":   identity.DisplayName,
		"email_verified": identity.EmailVerified,
		"mfa_enabled":    identity.MFAEnabled,
		"locale":         identity.Locale,
		"last_login_at":  identity.LastLoginAt,
		"created_at":     identity.CreatedAt,
	}
}
