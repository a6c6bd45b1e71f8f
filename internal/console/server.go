package console

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/hms/internal/config"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/metrics"
	"github.com/ehr/hms/internal/platform/middleware"
	"github.com/ehr/hms/internal/platform/snapshot"
	"github.com/ehr/hms/internal/platform/telemetry"
	"github.com/ehr/hms/internal/platform/websocket"
	"github.com/ehr/hms/internal/registry"
)

// Version is reported by /health. Overridden at link time.
var Version = "0.1.0"

// ServiceName names the console in traces.
const ServiceName = "hms-console"

// Deps are the collaborators the console serves.
type Deps struct {
	Registry  *registry.Registry
	Snapshots snapshot.Store // nil when snapshots are disabled
	Watch     *websocket.Hub
	Logger    zerolog.Logger
}

// NewServer builds the console's echo instance with the full middleware
// chain and every route registered.
func NewServer(cfg *config.Config, deps Deps) *echo.Echo {
	logger := deps.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(telemetry.Middleware(ServiceName))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.ConsoleKey),
			Skipper:    auth.SkipPaths("/health", "/metrics"),
		}))
	}

	e.GET("/health", healthHandler(deps.Snapshots))
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	apiV1 := e.Group("/api/v1")
	NewHandler(deps.Registry, deps.Snapshots, logger).RegisterRoutes(apiV1)
	if deps.Watch != nil {
		watch := apiV1.Group("", auth.RequireRole(auth.RoleViewer, auth.RoleEditor))
		websocket.NewHandler(deps.Watch, cfg.CORSOrigins).RegisterRoutes(watch)
	}
	return e
}

func healthHandler(snapshots snapshot.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]string{"status": "ok", "version": Version}
		if snapshots == nil {
			return c.JSON(http.StatusOK, body)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := snapshots.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["snapshot"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		body["snapshot"] = "ok"
		return c.JSON(http.StatusOK, body)
	}
}
