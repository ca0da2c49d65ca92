package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/obs"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/ratelimit"
)

// RateLimitMiddleware enforces the sliding-window limits. Every request
// consumes from the per-IP bucket for its route family; authenticated
// requests also consume from the per-user bucket. The tighter verdict
// wins.
func RateLimitMiddleware(limiter *ratelimit.Limiter, metrics *obs.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bucket := ratelimit.ClassifyRoute(c.Path())

		result := limiter.Allow(c.Context(), ratelimit.ScopePerIP, bucket, c.IP())

		if identity, ok := c.Locals("identity").(*domain.Identity); ok {
			userResult := limiter.Allow(c.Context(), ratelimit.ScopePerUser, bucket, identity.ID.String())
			if !userResult.Allowed || (result.Allowed && userResult.Limit > 0 && remaining(userResult) < remaining(result)) {
				result = userResult
			}
		}

		setRateHeaders(c, result)

		if !result.Allowed {
			metrics.RecordRateLimitDenial(string(bucket))
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}

func remaining(r ratelimit.Result) int {
	left := r.Limit - r.Current
	if left < 0 {
		return 0
	}
	return left
}

func setRateHeaders(c *fiber.Ctx, r ratelimit.Result) {
	if r.Limit <= 0 {
		return
	}
	c.Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining(r)))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.Unix(), 10))
}
