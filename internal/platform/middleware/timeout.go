package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds every request with a context deadline. Handlers pass
// the request context down to the store, so lock waits and queries observe
// it. When the deadline has passed and nothing has been written yet, the
// client receives 504 with a TRANSACTION_TIMEOUT body.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return c.JSON(http.StatusGatewayTimeout, map[string]any{
					"code":      "TRANSACTION_TIMEOUT",
					"message":   "request processing exceeded the allowed time limit",
					"retryable": true,
				})
			}
			return err
		}
	}
}
