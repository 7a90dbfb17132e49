package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initAuthRoutes registers the auth status endpoint. Authentication itself
// is handled upstream, the service only reports its own view.
func (c *Controller) initAuthRoutes() {
	c.Echo.GET("/auth/status", c.AuthStatus)
}

// AuthStatus reports whether the service enforces authentication.
func (c *Controller) AuthStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":       "ok",
		"auth_enabled": false,
	})
}
