package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"streamgate/internal/httprange"
	"streamgate/internal/remote"
	"streamgate/internal/token"

	"github.com/labstack/echo/v4"
)

// mapRelayError translates the relay error taxonomy into HTTP responses.
// Headers set here survive into echo's error handler output.
func mapRelayError(c echo.Context, err error) error {
	var notSat *httprange.NotSatisfiableError
	var rateLimited *remote.RateLimitError

	switch {
	case errors.Is(err, token.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid token")
	case errors.Is(err, remote.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "object not found")
	case errors.Is(err, remote.ErrNoDocument):
		return echo.NewHTTPError(http.StatusNotFound, "message has no document")
	case errors.As(err, &notSat):
		c.Response().Header().Set("Content-Range", fmt.Sprintf("bytes */%d", notSat.Size))
		return echo.NewHTTPError(http.StatusRequestedRangeNotSatisfiable, "requested range not satisfiable")
	case errors.As(err, &rateLimited):
		secs := rateLimited.RetryAfterSeconds()
		c.Response().Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"error":               "upstream temporarily rate limited",
			"retry_after_seconds": secs,
		})
	case errors.Is(err, remote.ErrAuth):
		return echo.NewHTTPError(http.StatusInternalServerError, "upstream session rejected")
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "upstream timeout")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func queryInt(c echo.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.QueryParam(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
