package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
)

// requestContext collects the request attributes the services and the
// risk pipeline consume. The screen resolution and timezone are
// client-supplied hints; absent headers simply weaken the fingerprint.
func requestContext(c *fiber.Ctx) service.RequestContext {
	return service.RequestContext{
		IP:               c.IP(),
		UserAgent:        c.Get("User-Agent"),
		AcceptLanguage:   c.Get("Accept-Language"),
		AcceptEncoding:   c.Get("Accept-Encoding"),
		ScreenResolution: c.Get("X-Screen-Resolution"),
		Timezone:         c.Get("X-Timezone"),
	}
}

// statusForError maps service sentinel errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidMFACode),
		errors.Is(err, service.ErrMFARequired),
		errors.Is(err, service.ErrInvalidOrExpiredToken),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrInvalidClient):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrAccountLocked),
		errors.Is(err, service.ErrRiskDenied):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, service.ErrEmailTaken):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrInvalidRedirectURI),
		errors.Is(err, service.ErrInvalidScope),
		errors.Is(err, service.ErrPKCEMismatch),
		errors.Is(err, service.ErrUnsupportedGrant),
		errors.Is(err, service.ErrConsentRequired),
		errors.Is(err, service.ErrMFANotEnabled):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
