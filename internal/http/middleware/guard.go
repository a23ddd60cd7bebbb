package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"

	"github.com/leadcrm/leadgate/internal/guard"
	"github.com/leadcrm/leadgate/internal/metrics"
)

// GuardConfig wires the protection pipeline and the breaker registry the
// pipeline's breaker filter reads from. The registry is shared so handler
// outcomes feed the same per-endpoint breakers the filter queries.
type GuardConfig struct {
	Pipeline *guard.Pipeline
	Breakers *guard.BreakerRegistry
}

// GuardMiddleware runs every request through the guard pipeline before the
// handler, and reports the handler's outcome to the endpoint's circuit
// breaker afterwards. Throttle and anomaly rejections map to 429, an open
// breaker to 503; both carry a machine-readable retryAfter in seconds.
//
// Only server-class outcomes (5xx) count as breaker failures; 4xx is a
// client problem and must never open the circuit.
func GuardMiddleware(cfg GuardConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := guardRequest(c)
			now := time.Now()

			if d := cfg.Pipeline.Evaluate(c.Request().Context(), req, now); !d.Allowed {
				metrics.GuardRejectionsTotal.WithLabelValues(d.Filter).Inc()

				status := http.StatusTooManyRequests
				if d.Filter == guard.FilterBreaker {
					status = http.StatusServiceUnavailable
				}
				retryAfter := int(d.RetryAfter / time.Second)
				if d.RetryAfter%time.Second != 0 {
					retryAfter++ // round up, never advertise an expired cooldown
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return c.JSON(status, map[string]interface{}{
					"error":      d.Reason,
					"retryAfter": retryAfter,
				})
			}

			br := cfg.Breakers.GetOrCreate(req.Path)
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			before := br.State()
			if status >= http.StatusInternalServerError {
				br.OnFailure(time.Now())
			} else {
				br.OnSuccess()
			}
			if after := br.State(); after != before {
				metrics.BreakerTransitionsTotal.WithLabelValues(req.Path, after.String()).Inc()
			}

			return err
		}
	}
}

// guardRequest builds the guard's view of the request: authenticated org id
// when present, client IP otherwise, plus the normalized endpoint key.
func guardRequest(c echo.Context) guard.Request {
	req := guard.Request{
		ClientID: "ip:" + c.RealIP(),
		Path:     c.Request().Method + " " + c.Path(),
	}
	if orgID, ok := OrganizationIDFromCtx(c); ok {
		req.ClientID = "org:" + strconv.FormatInt(orgID, 10)
	}
	if rps, ok := c.Get("organization_rps").(int); ok && rps > 0 {
		req.MaxRPS = rps
	}
	return req
}
