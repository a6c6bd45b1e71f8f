package auth

import (
	"github.com/labstack/echo/v4"
)

// SkipPaths builds a JWTConfig.Skipper that lets the given route paths
// through unauthenticated. Paths are matched against the registered route,
// so "/health" does not open "/health/extra".
func SkipPaths(paths ...string) func(echo.Context) bool {
	public := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		public[p] = struct{}{}
	}
	return func(c echo.Context) bool {
		_, ok := public[c.Path()]
		return ok
	}
}
