package middleware

import (
	"github.com/labstack/echo/v4"

	"oysloe/internal/infrastructure/ratelimit"
	apperrors "oysloe/pkg/errors"
	"oysloe/pkg/logger"
	"oysloe/pkg/response"
)

// RateLimit applies the limiter's rule for action, keyed by the authenticated user
// or, before authentication, by client IP.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := UserID(c)
			if key == "" {
				key = "ip:" + c.RealIP()
			}
			if !limiter.Allow(key, action) {
				logger.Warn("RATE LIMIT: %s exceeded %s", key, action)
				return response.Error(c, apperrors.TooManyRequests("Rate limit exceeded"))
			}
			return next(c)
		}
	}
}
