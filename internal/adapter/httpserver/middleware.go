package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/pscheid92/newspulse/internal/platform/correlation"
)

const correlationHeader = "X-Correlation-ID"

// correlationMiddleware tags the request context with the caller's correlation ID,
// or a fresh one, and echoes it back in the response header.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if id == "" {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlationHeader, id)
		return next(c)
	}
}

// errorHandlingMiddleware turns handler errors into JSON responses. echo.HTTPErrors
// pass through to echo's own handler.
func errorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			status := statusFor(err)
			attrs := []any{
				"path", c.Request().URL.Path,
				"method", c.Request().Method,
				"status", status,
				"error", err,
			}
			if status >= http.StatusInternalServerError {
				slog.ErrorContext(c.Request().Context(), "Request failed", attrs...)
			} else {
				slog.InfoContext(c.Request().Context(), "Request rejected", attrs...)
			}

			if err := c.JSON(status, map[string]string{"error": http.StatusText(status)}); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func statusFor(err error) int {
	switch {
	case domain.IsKind(err, domain.KindAuth):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.KindSerialization):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.KindStorage), domain.IsKind(err, domain.KindBroker):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
