package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/validator"
)

// SecurityHandler serves the operator dashboard. All routes require a
// privileged identity.
type SecurityHandler struct {
	securityService *service.SecurityService
	riskService     *service.RiskService
	validator       *validator.Validator
}

func NewSecurityHandler(securityService *service.SecurityService, riskService *service.RiskService, validator *validator.Validator) *SecurityHandler {
	return &SecurityHandler{
		securityService: securityService,
		riskService:     riskService,
		validator:       validator,
	}
}

// Events lists recent security events, optionally filtered
// GET /api/v1/security/events
func (h *SecurityHandler) Events(c *fiber.Ctx) error {
	var q service.EventQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query parameters")
	}

	if err := h.validator.Validate(q); err != nil {
		return badRequest(c, err.Error())
	}

	events, err := h.securityService.RecentEvents(c.Context(), q)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}

// Stats returns aggregate counts over a trailing window
// GET /api/v1/security/stats
func (h *SecurityHandler) Stats(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", 24)
	if hours < 1 || hours > 720 {
		return badRequest(c, "hours must be between 1 and 720")
	}

	stats, err := h.securityService.DashboardStats(c.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}

// LoginPatterns returns successful logins grouped by country
// GET /api/v1/security/login-patterns
func (h *SecurityHandler) LoginPatterns(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days < 1 || days > 90 {
		return badRequest(c, "days must be between 1 and 90")
	}

	patterns, err := h.securityService.LoginPatterns(c.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"patterns": patterns,
	})
}

// RateLimitStatus reports the caller's current bucket usage
// GET /api/v1/security/rate-limits
func (h *SecurityHandler) RateLimitStatus(c *fiber.Ctx) error {
	userID := ""
	if identity, ok := c.Locals("identity").(*domain.Identity); ok {
		userID = identity.ID.String()
	}

	statuses := h.securityService.RateLimitStatus(c.Context(), c.IP(), userID)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"buckets": statuses,
	})
}

// Evaluate runs an on-demand zero-trust evaluation for the caller
// POST /api/v1/security/evaluate
func (h *SecurityHandler) Evaluate(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	var req service.EvaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	evaluation, err := h.riskService.Evaluate(c.Context(), identity, req, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(evaluation)
}
