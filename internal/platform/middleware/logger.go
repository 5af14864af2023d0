package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestObserver records per-route request outcomes.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Logger writes one zerolog event per request and reports it to obs when
// obs is non-nil. Routes are labelled by their registered pattern so path
// parameters do not explode metric cardinality.
func Logger(logger zerolog.Logger, obs RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}
			status := c.Response().Status
			elapsed := time.Since(start)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", elapsed).
				Msg("request")

			if obs != nil {
				route := c.Path()
				if route == "" {
					route = "unmatched"
				}
				obs.ObserveRequest(req.Method, route, status, elapsed)
			}
			return nil
		}
	}
}
