package http

import (
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/leadcrm/leadgate/internal/http/middleware"
	"github.com/leadcrm/leadgate/internal/repository"
)

// listSubscriptionsHandler exposes the tenant's webhook registry read-only;
// creation and editing belong to the settings layer. Secrets are not echoed
// back.
func listSubscriptionsHandler(repo repository.SubscriptionsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrganizationIDFromCtx(c)
		if !ok || orgID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		subs, err := repo.ListByOrganization(c.Request().Context(), orgID)
		if err != nil {
			log.Errorf("list subscriptions failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		type item struct {
			ID      string   `json:"id"`
			Name    string   `json:"name"`
			URL     string   `json:"url"`
			Events  []string `json:"events"`
			Enabled bool     `json:"enabled"`
		}
		out := make([]item, 0, len(subs))
		for _, s := range subs {
			out = append(out, item{
				ID:      s.ID,
				Name:    s.Name,
				URL:     s.URL,
				Events:  []string(s.Events),
				Enabled: s.Enabled,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{"subscriptions": out})
	}
}
