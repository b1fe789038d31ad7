package httpapi

import (
	"log"
	"net/http"

	"streamgate/internal/auth"
	"streamgate/internal/config"
	"streamgate/internal/httpapi/handlers"
	"streamgate/internal/httpapi/middlewares"
	"streamgate/internal/ingest"
	"streamgate/internal/ratelimit"
	"streamgate/internal/relay"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type API struct {
	cfg     config.Config
	auth    *auth.Authenticator
	limiter *ratelimit.Limiter
	handler *handlers.Handler
}

func New(cfg config.Config, rly *relay.Relay, ing *ingest.Service, uploads handlers.UploadLister, authn *auth.Authenticator) *API {
	return &API{
		cfg:  cfg,
		auth: authn,
		limiter: ratelimit.New(ratelimit.Limits{
			Window: cfg.RateLimitWindow,
			Stream: cfg.RateLimitStream,
			Ingest: cfg.RateLimitIngest,
		}),
		handler: handlers.New(cfg, rly, ing, uploads, authn),
	}
}

func (a *API) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("%s %s -> %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: a.cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderAccept,
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			"Range",
			"X-API-Token",
		},
		ExposeHeaders: []string{
			"Accept-Ranges",
			"Content-Range",
			"Content-Disposition",
			"RateLimit-Limit",
			"RateLimit-Remaining",
			"RateLimit-Reset",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: 600,
	}))
	e.Use(middlewares.Metrics())

	a.registerRoutes(e)
	return e
}
