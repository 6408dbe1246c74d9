package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/pscheid92/newspulse/internal/platform/config"
	"github.com/pscheid92/newspulse/internal/session"
	"github.com/stretchr/testify/require"
)

type fakeAuth map[string]string

func (a fakeAuth) DecodeToken(token string) (*domain.Claims, error) {
	subject, ok := a[token]
	if !ok {
		return nil, domain.NewAuthError("decode token", domain.ErrInvalidToken)
	}
	return &domain.Claims{Subject: subject}, nil
}

// recordingRegistry captures direct sends and fails registration.
type recordingRegistry struct {
	mu    sync.Mutex
	sent  map[string][]string
	err   error
	calls int
}

func (r *recordingRegistry) Connect(context.Context, string, session.Handle) (string, error) {
	return "", errors.New("not supported")
}

func (r *recordingRegistry) Promote(context.Context, string, string, session.Handle) (bool, error) {
	return false, nil
}

func (r *recordingRegistry) Release(context.Context, string, session.Handle) error {
	return nil
}

func (r *recordingRegistry) Send(_ context.Context, key string, message []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.sent == nil {
		r.sent = make(map[string][]string)
	}
	r.sent[key] = append(r.sent[key], string(message))
	return r.err
}

type serverOption func(*serverSetup)

type serverSetup struct {
	cfg          *config.Config
	registry     sessionRegistry
	healthChecks []HealthCheck
	clock        clockwork.Clock
}

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(s *serverSetup) { s.healthChecks = checks }
}

func withRegistry(r sessionRegistry) serverOption {
	return func(s *serverSetup) { s.registry = r }
}

func withConfig(mutate func(*config.Config)) serverOption {
	return func(s *serverSetup) { mutate(s.cfg) }
}

func withClock(c clockwork.Clock) serverOption {
	return func(s *serverSetup) { s.clock = c }
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		MaxWebSocketConnections: 10,
		WSRatePerSecond:         100,
		WSRateBurst:             100,
	}
}

func newTestServer(t *testing.T, opts ...serverOption) (*Server, *metrics.SessionMetrics) {
	t.Helper()
	setup := &serverSetup{
		cfg:      testConfig(),
		registry: &recordingRegistry{},
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(setup)
	}

	reg := prometheus.NewRegistry()
	sessionMetrics := metrics.NewSessionMetrics(reg)
	m := Metrics{
		HTTP:    metrics.NewHTTPMetrics(reg),
		Session: sessionMetrics,
		Handler: metrics.Handler(reg),
	}
	auth := fakeAuth{"token-u1": "user-1"}
	return NewServer(setup.cfg, setup.registry, auth, setup.clock, m, setup.healthChecks), sessionMetrics
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// liveServer runs srv over a real listener with a real session registry.
func liveServer(t *testing.T, opts ...serverOption) (*httptest.Server, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(clockwork.NewRealClock(), metrics.NewSessionMetrics(prometheus.NewRegistry()))
	t.Cleanup(registry.Stop)

	srv, _ := newTestServer(t, append(opts, withRegistry(registry))...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, registry
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}
