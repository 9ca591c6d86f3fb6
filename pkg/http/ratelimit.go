package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	applogger "FinFusion/pkg/logger"
)

const CodeRateLimited = "ERR_RATE_LIMITED"

// Counter is the fixed-window counter backing the limiter.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig holds per-client limits.
type RateLimitConfig struct {
	Limit   int64
	Window  time.Duration
	Skipper func(c echo.Context) bool
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
}

// RateLimit allows Limit requests per client IP per Window. When the
// counter backend fails the request is let through.
func RateLimit(counter Counter, cfg RateLimitConfig, l *applogger.Logger) echo.MiddlewareFunc {
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			ip := c.RealIP()
			n, err := counter.Increment(c.Request().Context(), "rate_limit:"+ip, cfg.Window)
			if err != nil {
				l.Warn("rate limit counter unavailable", applogger.String("ip", ip), applogger.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(cfg.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(cfg.Limit-n, 0), 10))

			if n > cfg.Limit {
				h.Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				return AppErrorResponse(c, TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
