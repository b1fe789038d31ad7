package middlewares

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"streamgate/internal/metrics"

	"github.com/labstack/echo/v4"
)

// Metrics records per-route request counts and latency. The label is the
// registered route pattern, not the raw URI, to keep cardinality bounded.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var httpErr *echo.HTTPError
				if errors.As(err, &httpErr) {
					status = httpErr.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordRequest(
				c.Request().Method,
				route,
				strconv.Itoa(status),
				time.Since(start).Seconds(),
			)
			return err
		}
	}
}
