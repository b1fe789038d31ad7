package httpapi

import (
	"net/http"
	"time"

	"streamgate/internal/httpapi/middlewares"
	"streamgate/internal/ratelimit"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *API) registerRoutes(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"service": "streamgate",
			"ok":      true,
		})
	})

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	streamLimit := middlewares.RateLimit(a.limiter, ratelimit.ClassStream)
	e.GET("/stream/:token", a.handler.Stream, streamLimit)
	e.HEAD("/stream/:token", a.handler.Stream, streamLimit)
	e.GET("/download/:token", a.handler.Download, streamLimit)
	e.HEAD("/download/:token", a.handler.Download, streamLimit)

	e.POST("/webhook", a.handler.Webhook, middlewares.RateLimit(a.limiter, ratelimit.ClassIngest))

	v1 := e.Group("/api/v1")
	v1.Use(a.auth.Middleware)
	v1.GET("/uploads", a.handler.ListUploads)

	internal := e.Group("/api/internal")
	internal.Use(a.auth.Middleware)
	internal.POST("/tokens", a.handler.CreateToken)
}
