package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/leadcrm/leadgate/internal/repository"
)

// OrganizationIDFromCtx extracts the authenticated organization id set by
// APIKeyMiddleware.
func OrganizationIDFromCtx(c echo.Context) (int64, bool) {
	v := c.Get("organization_id")
	id, ok := v.(int64)
	return id, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header. On
// success it stores the organization id (and its throttle override, if any)
// in context and blocks suspended tenants.
func APIKeyMiddleware(orgs repository.OrganizationsRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			org, err := orgs.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if org == nil || org.Status != "active" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set("organization_id", org.ID)
			if org.RateLimitRPS != nil {
				c.Set("organization_rps", *org.RateLimitRPS)
			}
			return next(c)
		}
	}
}
