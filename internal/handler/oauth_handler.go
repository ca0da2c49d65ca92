package handler

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/obs"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/validator"
)

type OAuthHandler struct {
	oauthService *service.OAuthService
	validator    *validator.Validator
	metrics      *obs.Metrics
}

func NewOAuthHandler(oauthService *service.OAuthService, validator *validator.Validator, metrics *obs.Metrics) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		validator:    validator,
		metrics:      metrics,
	}
}

func authorizeRequestFromQuery(c *fiber.Ctx) service.AuthorizeRequest {
	return service.AuthorizeRequest{
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		ResponseType:        c.Query("response_type"),
		Scope:               c.Query("scope"),
		State:               c.Query("state"),
		Nonce:               c.Query("nonce"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
	}
}

// Authorize validates an authorization request for the authenticated
// identity. Prior consent redirects straight back with a code; a
// missing consent returns the decision the front-end must collect.
// GET /oauth/authorize
func (h *OAuthHandler) Authorize(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	req := authorizeRequestFromQuery(c)
	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.oauthService.Authorize(c.Context(), identity, req)
	if err != nil {
		return oauthFail(c, err)
	}

	if result.ConsentRequired {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"consent_required": true,
			"client_name":      result.Client.Name,
			"scope":            result.Scope,
			"state":            result.State,
		})
	}

	return redirectWithCode(c, result)
}

// Consent records the identity's consent decision and finishes the
// pending authorization
// POST /oauth/consent
func (h *OAuthHandler) Consent(c *fiber.Ctx) error {
	identity, ok := c.Locals("identity").(*domain.Identity)
	if !ok {
		return fail(c, service.ErrSessionNotFound)
	}

	var req struct {
		service.AuthorizeRequest
		Approve bool `json:"approve"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req.AuthorizeRequest); err != nil {
		return badRequest(c, err.Error())
	}

	if !req.Approve {
		return redirectWithError(c, req.RedirectURI, req.State, "access_denied")
	}

	result, err := h.oauthService.GrantConsent(c.Context(), identity, req.AuthorizeRequest)
	if err != nil {
		return oauthFail(c, err)
	}

	return redirectWithCode(c, result)
}

// Token is the OAuth2 token endpoint (RFC 6749 section 3.2). Accepts
// authorization_code, refresh_token and client_credentials grants.
// POST /oauth/token
func (h *OAuthHandler) Token(c *fiber.Ctx) error {
	var req service.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return oauthError(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return oauthError(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}

	set, err := h.oauthService.Token(c.Context(), req, requestContext(c))
	if err != nil {
		return oauthFail(c, err)
	}

	h.metrics.RecordTokenIssued(req.GrantType)

	c.Set("Cache-Control", "no-store")
	c.Set("Pragma", "no-cache")
	return c.Status(fiber.StatusOK).JSON(set)
}

// UserInfo returns the OIDC claims for a bearer access token
// GET /oauth/userinfo
func (h *OAuthHandler) UserInfo(c *fiber.Ctx) error {
	bearer := bearerToken(c)
	if bearer == "" {
		c.Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		return oauthError(c, fiber.StatusUnauthorized, "invalid_token", "Missing bearer token")
	}

	info, err := h.oauthService.UserInfo(c.Context(), bearer)
	if err != nil {
		c.Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		return oauthError(c, fiber.StatusUnauthorized, "invalid_token", err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(info)
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func redirectWithCode(c *fiber.Ctx, result *service.AuthorizeResult) error {
	target, err := url.Parse(result.RedirectURI)
	if err != nil {
		return fail(c, service.ErrInvalidRedirectURI)
	}

	query := target.Query()
	query.Set("code", result.Code)
	if result.State != "" {
		query.Set("state", result.State)
	}
	target.RawQuery = query.Encode()

	return c.Redirect(target.String(), fiber.StatusFound)
}

func redirectWithError(c *fiber.Ctx, redirectURI, state, code string) error {
	target, err := url.Parse(redirectURI)
	if err != nil {
		return fail(c, service.ErrInvalidRedirectURI)
	}

	query := target.Query()
	query.Set("error", code)
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()

	return c.Redirect(target.String(), fiber.StatusFound)
}

// oauthFail translates service errors into the RFC 6749 error body.
func oauthFail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		return oauthError(c, fiber.StatusUnauthorized, "invalid_client", err.Error())
	case errors.Is(err, service.ErrUnsupportedGrant):
		return oauthError(c, fiber.StatusBadRequest, "unsupported_grant_type", err.Error())
	case errors.Is(err, service.ErrInvalidScope):
		return oauthError(c, fiber.StatusBadRequest, "invalid_scope", err.Error())
	case errors.Is(err, service.ErrInvalidOrExpiredToken),
		errors.Is(err, service.ErrPKCEMismatch),
		errors.Is(err, service.ErrInvalidRedirectURI):
		return oauthError(c, fiber.StatusBadRequest, "invalid_grant", err.Error())
	default:
		return oauthError(c, fiber.StatusInternalServerError, "server_error", err.Error())
	}
}

func oauthError(c *fiber.Ctx, status int, code, description string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":             code,
		"error_description": description,
	})
}
