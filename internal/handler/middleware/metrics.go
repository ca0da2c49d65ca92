package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/obs"
)

// MetricsMiddleware records request counts and latency.
func MetricsMiddleware(metrics *obs.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		method := c.Method()
		metrics.HTTPRequests.WithLabelValues(method, strconv.Itoa(c.Response().StatusCode())).Inc()
		metrics.HTTPDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

		return err
	}
}
