package middleware

import (
	"github.com/labstack/echo/v4"
)

// APIHeaders sets response headers for a JSON API consumed by browser
// calendars. Responses may be stored but must be revalidated, since a
// reload can change any month.
func APIHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-cache")
			return next(c)
		}
	}
}
