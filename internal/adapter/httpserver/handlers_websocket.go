package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newspulse/internal/session"
)

func (s *Server) handleWebSocket(c echo.Context) error {
	ctx := c.Request().Context()

	if !s.limiter.Acquire() {
		s.metrics.Session.RejectedUpgrades.WithLabelValues("capacity").Inc()
		slog.WarnContext(ctx, "WebSocket connection rejected, at capacity", "remote_addr", c.RealIP())
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "too many connections",
		})
	}
	defer s.limiter.Release()

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		s.metrics.Session.RejectedUpgrades.WithLabelValues("handshake").Inc()
		slog.DebugContext(ctx, "WebSocket upgrade failed", "error", err)
		return nil
	}

	conn := session.NewConnection(ws, s.registry, s.auth, s.clock, s.metrics.Session)
	if err := conn.Serve(ctx); err != nil {
		slog.ErrorContext(ctx, "WebSocket connection failed", "error", err)
	}
	return nil
}
