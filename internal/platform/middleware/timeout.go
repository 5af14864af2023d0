package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/slotcal/internal/platform/fhir"
)

// RequestTimeout sets a deadline on each request context. The handler runs
// on the request goroutine; when it returns after the deadline without having
// written, a 504 with an OperationOutcome is sent. A response the handler
// already wrote is left alone. Paths starting with any of skip run without a
// deadline.
func RequestTimeout(timeout time.Duration, skip ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, p := range skip {
				if strings.HasPrefix(path, p) {
					return next(c)
				}
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return c.JSON(http.StatusGatewayTimeout,
					fhir.NewOperationOutcome("error", "timeout", "request processing exceeded the allowed time limit"))
			}
			return err
		}
	}
}
