package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/validator"
)

type MagicLinkHandler struct {
	magicService *service.MagicLinkService
	validator    *validator.Validator
}

func NewMagicLinkHandler(magicService *service.MagicLinkService, validator *validator.Validator) *MagicLinkHandler {
	return &MagicLinkHandler{
		magicService: magicService,
		validator:    validator,
	}
}

// Request issues a single-use login link. The response is the same
// whether or not the address exists.
// POST /api/v1/auth/magic-link/request
func (h *MagicLinkHandler) Request(c *fiber.Ctx) error {
	var req struct {
		Email       string  `json:"email" validate:"required,email"`
		RedirectURI *string `json:"redirect_uri,omitempty" validate:"omitempty,uri"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.magicService.Request(c.Context(), req.Email, req.RedirectURI, requestContext(c)); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "If that address exists, a link is on its way",
	})
}

// Redeem exchanges a link token for a session
// POST /api/v1/auth/magic-link/redeem
func (h *MagicLinkHandler) Redeem(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.magicService.Redeem(c.Context(), req.Token, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// RequestPasswordReset issues a single-use reset link with the same
// generic-response contract as Request
// POST /api/v1/auth/password/reset/request
func (h *MagicLinkHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.magicService.RequestPasswordReset(c.Context(), req.Email, requestContext(c)); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "If that address exists, a link is on its way",
	})
}

// CompletePasswordReset consumes a reset token and sets the new
// password
// POST /api/v1/auth/password/reset/complete
func (h *MagicLinkHandler) CompletePasswordReset(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.magicService.CompletePasswordReset(c.Context(), req.Token, req.NewPassword, requestContext(c)); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Password reset; all sessions revoked",
	})
}
