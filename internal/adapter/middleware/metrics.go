package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
)

// Metrics records request count and latency per route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveHTTP(c.Request().Method, route, c.Response().Status, started)
			return nil
		}
	}
}
