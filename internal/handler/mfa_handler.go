package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/validator"
)

type MFAHandler struct {
	mfaService *service.MFAService
	validator  *validator.Validator
}

func NewMFAHandler(mfaService *service.MFAService, validator *validator.Validator) *MFAHandler {
	return &MFAHandler{
		mfaService: mfaService,
		validator:  validator,
	}
}

// BeginEnrollment provisions a TOTP secret for the caller
// POST /api/v1/auth/totp/enroll
func (h *MFAHandler) BeginEnrollment(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	enrollment, err := h.mfaService.BeginEnrollment(c.Context(), identity.ID)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(enrollment)
}

// ConfirmEnrollment enables MFA after a valid code and returns the
// recovery codes exactly once
// POST /api/v1/auth/totp/confirm
func (h *MFAHandler) ConfirmEnrollment(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	var req struct {
		Code string `json:"code" validate:"required,len=6,numeric"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	codes, err := h.mfaService.ConfirmEnrollment(c.Context(), identity.ID, req.Code)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"recovery_codes": codes,
	})
}

// Disable turns MFA off after a password re-check
// POST /api/v1/auth/totp/disable
func (h *MFAHandler) Disable(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	var req struct {
		Password string `json:"password" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.mfaService.Disable(c.Context(), identity.ID, req.Password); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "MFA disabled",
	})
}

// RegenerateRecoveryCodes replaces the whole recovery code set
// POST /api/v1/auth/recovery-codes
func (h *MFAHandler) RegenerateRecoveryCodes(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	var req struct {
		Password string `json:"password" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	codes, err := h.mfaService.RegenerateRecoveryCodes(c.Context(), identity.ID, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"recovery_codes": codes,
	})
}
