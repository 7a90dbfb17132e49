package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/wildwatch/wildwatch-go/internal/datastore"
)

// initAnalyticsRoutes registers analytics-related API endpoints.
func (c *Controller) initAnalyticsRoutes() {
	c.Group.GET("/analytics/user/:user_id/dashboard", c.UserDashboard)
}

// UserDashboard returns per-user detection aggregates. Responses are cached
// briefly, writes through ingestion, update and delete invalidate the entry.
func (c *Controller) UserDashboard(ctx echo.Context) error {
	userID := ctx.Param("user_id")
	key := dashboardCacheKey(userID)

	if cached, found := c.dashboardCache.Get(key); found {
		if dashboard, ok := cached.(*datastore.Dashboard); ok {
			return ctx.JSON(http.StatusOK, dashboard)
		}
	}

	dashboard, err := c.DS.UserDashboard(userID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build dashboard", statusFor(err))
	}

	c.dashboardCache.Set(key, dashboard, cache.DefaultExpiration)
	return ctx.JSON(http.StatusOK, dashboard)
}

func dashboardCacheKey(userID string) string {
	return "dashboard:" + userID
}

// invalidateDashboard drops a user's cached dashboard after a write.
func (c *Controller) invalidateDashboard(userID string) {
	c.dashboardCache.Delete(dashboardCacheKey(userID))
}
