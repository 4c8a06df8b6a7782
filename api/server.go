package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// New builds the Echo server with the middleware chain and all routes.
func New(eng Engine, deduper Deduper, notifier Notifier, logger *log.Logger) *echo.Echo {
	if eng == nil {
		panic("api.New: engine is nil")
	}
	if logger == nil {
		panic("api.New: logger is nil")
	}
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = sonicSerializer{}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerIdempotencyKey},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(RequestMetricsMiddleware(logger))
	e.Use(GzipRequestMiddleware())

	Register(e, eng, deduper, notifier, logger)
	return e
}
