package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/pscheid92/newspulse/internal/platform/config"
	"github.com/pscheid92/newspulse/internal/session"
)

// sessionRegistry is what the server needs from session.Registry.
type sessionRegistry interface {
	session.Directory
	Send(ctx context.Context, key string, message []byte) error
}

// Metrics bundles the collectors the server records to and the scrape handler.
type Metrics struct {
	HTTP    *metrics.HTTPMetrics
	Session *metrics.SessionMetrics
	Handler http.Handler
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	registry sessionRegistry
	auth     domain.AuthService
	clock    clockwork.Clock
	metrics  Metrics

	upgrader     websocket.Upgrader
	limiter      *GlobalConnectionLimiter
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, registry sessionRegistry, auth domain.AuthService, clock clockwork.Clock, m Metrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:     e,
		config:   cfg,
		registry: registry,
		auth:     auth,
		clock:    clock,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		},
		limiter:      NewGlobalConnectionLimiter(int64(cfg.MaxWebSocketConnections)),
		healthChecks: healthChecks,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be mounted in tests or behind another mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
