package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"streamgate/internal/metrics"
	"streamgate/internal/ratelimit"

	"github.com/labstack/echo/v4"
)

// RateLimit guards a route group with the given traffic class. The limiter
// itself is shared so stream and ingest budgets draw from one bucket table.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision := limiter.Allow(time.Now().UTC(), class, clientIP(c))
			setRateLimitHeaders(c.Response().Header(), decision)

			if !decision.Allowed {
				metrics.InboundThrottledTotal.WithLabelValues(string(class)).Inc()
				c.Response().Header().Set("Retry-After", strconv.FormatInt(decision.ResetIn, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}

func setRateLimitHeaders(header http.Header, decision ratelimit.Decision) {
	if decision.Limit == 0 {
		return
	}
	limit := strconv.Itoa(decision.Limit)
	remaining := strconv.Itoa(decision.Remaining)

	header.Set("X-RateLimit-Limit", limit)
	header.Set("X-RateLimit-Remaining", remaining)
	header.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt, 10))

	header.Set("RateLimit-Limit", limit)
	header.Set("RateLimit-Remaining", remaining)
	header.Set("RateLimit-Reset", strconv.FormatInt(decision.ResetIn, 10))
}

func clientIP(c echo.Context) string {
	ip := strings.TrimSpace(c.RealIP())
	if ip == "" {
		ip = clientIPFromRemoteAddr(c.Request().RemoteAddr)
	}
	if ip == "" {
		ip = "unknown"
	}
	return ip
}

func clientIPFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return strings.TrimSpace(host)
}
