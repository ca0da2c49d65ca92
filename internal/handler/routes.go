package handler

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes wires all endpoints. Rate limiting is attached per group;
// session-protected routes add the auth middleware per route so public
// and protected endpoints can share a prefix.
func SetupRoutes(
	app *fiber.App,
	authHandler *AuthHandler,
	mfaHandler *MFAHandler,
	magicLinkHandler *MagicLinkHandler,
	oauthHandler *OAuthHandler,
	sessionHandler *SessionHandler,
	securityHandler *SecurityHandler,
	discoveryHandler *DiscoveryHandler,
	healthHandler *HealthHandler,
	authMiddleware fiber.Handler,
	requirePrivileged fiber.Handler,
	rateLimit fiber.Handler,
) {
	// Health checks (public, unthrottled)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)

	// OIDC discovery (public, unthrottled)
	app.Get("/.well-known/openid-configuration", discoveryHandler.Configuration)
	app.Get("/.well-known/jwks.json", discoveryHandler.JWKS)

	// API v1
	api := app.Group("/api/v1")

	// Auth routes; the credential lifecycle ones are public by nature
	auth := api.Group("/auth", rateLimit)
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/mfa/verify", authHandler.CompleteMFA)
	auth.Post("/magic-link/request", magicLinkHandler.Request)
	auth.Post("/magic-link/redeem", magicLinkHandler.Redeem)
	auth.Post("/password/reset/request", magicLinkHandler.RequestPasswordReset)
	auth.Post("/password/reset/complete", magicLinkHandler.CompletePasswordReset)

	auth.Post("/logout", authMiddleware, authHandler.Logout)
	auth.Post("/password/change", authMiddleware, authHandler.ChangePassword)
	auth.Post("/totp/enroll", authMiddleware, mfaHandler.BeginEnrollment)
	auth.Post("/totp/confirm", authMiddleware, mfaHandler.ConfirmEnrollment)
	auth.Post("/totp/disable", authMiddleware, mfaHandler.Disable)
	auth.Post("/recovery-codes", authMiddleware, mfaHandler.RegenerateRecoveryCodes)

	// Profile and sessions (session required)
	users := api.Group("/users", authMiddleware, rateLimit)
	users.Get("/me", authHandler.Me)

	sessions := api.Group("/sessions", authMiddleware, rateLimit)
	sessions.Get("/", sessionHandler.List)
	sessions.Delete("/", sessionHandler.RevokeAll)
	sessions.Delete("/:id", sessionHandler.Revoke)

	// Security dashboard (privileged identities only)
	security := api.Group("/security", authMiddleware, requirePrivileged, rateLimit)
	security.Get("/events", securityHandler.Events)
	security.Get("/stats", securityHandler.Stats)
	security.Get("/login-patterns", securityHandler.LoginPatterns)
	security.Get("/rate-limits", securityHandler.RateLimitStatus)
	security.Post("/evaluate", securityHandler.Evaluate)

	// OAuth2 / OIDC
	oauth := app.Group("/oauth", rateLimit)
	oauth.Post("/token", oauthHandler.Token)
	oauth.Get("/userinfo", oauthHandler.UserInfo)
	oauth.Get("/authorize", authMiddleware, oauthHandler.Authorize)
	oauth.Post("/consent", authMiddleware, oauthHandler.Consent)
}
