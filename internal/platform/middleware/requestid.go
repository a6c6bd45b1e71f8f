package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/hms/internal/platform/gateway"
)

const RequestIDHeader = gateway.RequestIDHeader

// RequestID reuses the caller's X-Request-ID or generates one, echoes it on
// the response and hands it to the gateway so backend calls carry the same id.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			req := c.Request()
			c.SetRequest(req.WithContext(gateway.WithRequestID(req.Context(), rid)))
			return next(c)
		}
	}
}
