package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type sendMessageRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// handleSendMessage pushes a text message to the session registered under user_id.
// Delivery is best-effort: the request is accepted even when nobody is connected.
func (s *Server) handleSendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	ctx := c.Request().Context()
	if err := s.registry.Send(ctx, req.UserID, []byte(req.Message)); err != nil {
		slog.WarnContext(ctx, "Direct message not delivered", "user_id", req.UserID, "error", err)
	}

	if err := c.NoContent(http.StatusAccepted); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
