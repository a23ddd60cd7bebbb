package http

import (
	"encoding/json"
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/leadcrm/leadgate/internal/http/middleware"
	"github.com/leadcrm/leadgate/internal/metrics"
	"github.com/leadcrm/leadgate/internal/service/event"
)

type emitReq struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// emitEventHandler is the inbound edge of the domain-event emitter: the CRUD
// layer calls it after a committed write. It only records the event in the
// outbox; delivery happens on the worker side, so this stays fast no matter
// how many subscribers a tenant has.
func emitEventHandler(emitter event.Emitter) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req emitReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.Event == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing event name"})
		}

		orgID, ok := middleware.OrganizationIDFromCtx(c)
		if !ok || orgID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		id, err := emitter.Emit(c.Request().Context(), orgID, req.Event, req.Data)
		if err != nil {
			if errors.Is(err, event.ErrUnknownEvent) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown event name"})
			}

			log.Errorf("emit failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		metrics.EventsEmittedTotal.WithLabelValues(req.Event).Inc()

		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"accepted": true,
			"id":       id,
			"event":    req.Event,
		})
	}
}
