package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	echoapi "github.com/helioslabs/userhub/api/echo"
	"github.com/helioslabs/userhub/config"
	"github.com/helioslabs/userhub/log"
	"github.com/helioslabs/userhub/middleware"
)

// NewHTTPServer creates and configures the Echo HTTP server.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, api *echoapi.API) *http.Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// Request logging through the application logger.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			fields := map[string]interface{}{
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if err != nil {
				appLogger.Error(c.Request().Context(), "HTTP Request", err, fields)
			} else {
				appLogger.Info(c.Request().Context(), "HTTP Request", fields)
			}
			return err
		}
	})

	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.CORS(cfg.Origins()))
	e.Use(middleware.CSRF())

	api.RegisterRoutes(e)

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
