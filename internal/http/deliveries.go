package http

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/leadcrm/leadgate/internal/http/middleware"
	"github.com/leadcrm/leadgate/internal/repository"
)

// listDeliveriesHandler serves the tenant's delivery-log report from the
// ClickHouse read side. Query params: event (optional), from/to (RFC3339,
// default last 24h), limit (default 100, max 1000).
func listDeliveriesHandler(repo repository.CHDeliveriesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrganizationIDFromCtx(c)
		if !ok || orgID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		now := time.Now().UTC()
		from, to := now.Add(-24*time.Hour), now
		if v := c.QueryParam("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid from"})
			}
			from = t
		}
		if v := c.QueryParam("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid to"})
			}
			to = t
		}

		limit := 100
		if v := c.QueryParam("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			}
			if n > 1000 {
				n = 1000
			}
			limit = n
		}

		rows, err := repo.ListByOrganization(c.Request().Context(), orgID, c.QueryParam("event"), from, to, limit)
		if err != nil {
			log.Errorf("list deliveries failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		type item struct {
			ID             string `json:"id"`
			SubscriptionID string `json:"subscriptionId"`
			EventID        string `json:"eventId"`
			Event          string `json:"event"`
			Attempt        int    `json:"attempt"`
			StatusCode     int32  `json:"statusCode,omitempty"`
			Success        bool   `json:"success"`
			DurationMs     int64  `json:"durationMs"`
			CreatedAt      string `json:"createdAt"`
		}
		out := make([]item, 0, len(rows))
		for _, r := range rows {
			out = append(out, item{
				ID:             r.ID,
				SubscriptionID: r.SubscriptionID,
				EventID:        r.EventID,
				Event:          r.Event,
				Attempt:        r.Attempt,
				StatusCode:     r.StatusCode,
				Success:        r.Success,
				DurationMs:     r.DurationMs,
				CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{"deliveries": out})
	}
}
