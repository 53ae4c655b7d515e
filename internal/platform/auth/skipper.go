package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/health":     true,
	"/health/db":  true,
	"/metrics":    true,
	"/auth/token": true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. It matches on the route template, not the raw URL.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
