package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
)

const (
	HeartbeatInterval = 5 * time.Second
	ClientTimeout     = 10 * time.Second

	writeDeadline  = 5 * time.Second
	releaseTimeout = 5 * time.Second
	mailboxSize    = 64
	loginCommand   = "/login"
	echoPrefix     = "received text: "
)

// Directory is the part of the Registry a Connection talks to.
type Directory interface {
	Connect(ctx context.Context, proposedKey string, handle Handle) (string, error)
	Promote(ctx context.Context, oldKey, newKey string, handle Handle) (bool, error)
	Release(ctx context.Context, key string, handle Handle) error
}

// Connection is one live WebSocket client. Serve owns the read side; a writer
// goroutine owns every data and ping frame written to the socket.
type Connection struct {
	ws        *websocket.Conn
	directory Directory
	auth      domain.AuthService
	clock     clockwork.Clock
	metrics   *metrics.SessionMetrics

	mailbox  chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	activityMu   sync.Mutex
	lastActivity time.Time

	// Only touched by the goroutine running Serve.
	key           string
	authenticated bool
}

func NewConnection(ws *websocket.Conn, directory Directory, auth domain.AuthService, clock clockwork.Clock, m *metrics.SessionMetrics) *Connection {
	return &Connection{
		ws:           ws,
		directory:    directory,
		auth:         auth,
		clock:        clock,
		metrics:      m,
		mailbox:      make(chan []byte, mailboxSize),
		done:         make(chan struct{}),
		lastActivity: clock.Now(),
	}
}

// Serve registers the connection and runs it until the client goes away, misses its
// heartbeats or the socket is closed. The registry entry under the connection's
// current key is always released before Serve returns.
func (c *Connection) Serve(ctx context.Context) error {
	key, err := c.directory.Connect(ctx, c.ws.RemoteAddr().String(), c)
	if err != nil {
		_ = c.ws.Close()
		return fmt.Errorf("failed to register connection: %w", err)
	}
	c.key = key

	c.metrics.ActiveConnections.Inc()
	defer c.metrics.ActiveConnections.Dec()

	c.configureHeartbeatHandlers()
	c.wg.Add(1)
	go c.writeLoop()

	defer c.cleanup()
	c.readLoop(ctx)
	return nil
}

// Deliver queues message for the writer goroutine without blocking.
func (c *Connection) Deliver(message []byte) error {
	select {
	case <-c.done:
		return domain.ErrMailboxClosed
	default:
	}

	select {
	case c.mailbox <- message:
		return nil
	case <-c.done:
		return domain.ErrMailboxClosed
	default:
		return domain.ErrMailboxFull
	}
}

// Close sends a close frame and shuts the socket; Serve then returns on its own.
func (c *Connection) Close() {
	c.stopGraceful("server shutting down")
}

func (c *Connection) readLoop(ctx context.Context) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Connection read ended", "session_key", c.key, "error", err)
			}
			return
		}
		if msgType == websocket.TextMessage {
			c.handleText(ctx, string(data))
		}
	}
}

func (c *Connection) handleText(ctx context.Context, text string) {
	fields := strings.Fields(text)
	if len(fields) > 0 && fields[0] == loginCommand {
		c.handleLogin(ctx, fields[1:])
		return
	}

	if !c.authenticated {
		slog.Debug("Ignoring text from anonymous connection", "session_key", c.key)
		return
	}
	if text == "ping" {
		return
	}
	if err := c.Deliver([]byte(echoPrefix + text)); err != nil {
		slog.Debug("Failed to echo text", "session_key", c.key, "error", err)
	}
}

func (c *Connection) handleLogin(ctx context.Context, args []string) {
	if len(args) != 1 {
		c.metrics.Logins.WithLabelValues("malformed").Inc()
		slog.Warn("Malformed login command", "session_key", c.key, "arguments", len(args))
		return
	}

	claims, err := c.auth.DecodeToken(args[0])
	if err != nil {
		c.metrics.Logins.WithLabelValues("rejected").Inc()
		slog.Warn("Login rejected, connection stays anonymous", "session_key", c.key, "error", err)
		return
	}

	swapped, err := c.directory.Promote(ctx, c.key, claims.Subject, c)
	if err != nil {
		c.metrics.Logins.WithLabelValues("failed").Inc()
		slog.Warn("Failed to promote session after login", "session_key", c.key, "user_id", claims.Subject, "error", err)
		return
	}
	if !swapped {
		c.metrics.Logins.WithLabelValues("failed").Inc()
		return
	}

	previous := c.key
	c.key = claims.Subject
	c.authenticated = true
	c.metrics.Logins.WithLabelValues("accepted").Inc()
	slog.Info("Connection authenticated", "previous_key", previous, "user_id", claims.Subject)
}

func (c *Connection) cleanup() {
	c.stop()

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := c.directory.Release(ctx, c.key, c); err != nil && !errors.Is(err, domain.ErrRegistryStopped) {
		slog.Warn("Failed to release session", "session_key", c.key, "error", err)
	}
}

func (c *Connection) writeLoop() {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.mailbox:
			c.updateWriteDeadline()
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.ws.Close()
				return
			}
		case <-ticker.Chan():
			if c.heartbeatExpired() {
				c.metrics.HeartbeatTimeouts.Inc()
				slog.Info("Client heartbeat timed out, closing connection", "remote_addr", c.ws.RemoteAddr().String(), "timeout", ClientTimeout)
				_ = c.ws.Close()
				return
			}
			c.updateWriteDeadline()
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Connection) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
	c.wg.Wait()
}

func (c *Connection) stopGraceful(reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		// The writer must be gone before the close frame is written.
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		c.updateWriteDeadline()
		_ = c.ws.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = c.ws.Close()
	})
}

func (c *Connection) configureHeartbeatHandlers() {
	c.ws.SetPongHandler(func(string) error {
		c.recordActivity()
		return nil
	})
	c.ws.SetPingHandler(func(appData string) error {
		c.recordActivity()
		err := c.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeDeadline))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return err
	})
}

// Socket deadlines are wall-clock by nature, so they do not go through c.clock.
func (c *Connection) updateWriteDeadline() {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
}

func (c *Connection) recordActivity() {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	c.lastActivity = c.clock.Now()
}

func (c *Connection) lastSeen() time.Time {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	return c.lastActivity
}

func (c *Connection) heartbeatExpired() bool {
	return c.clock.Since(c.lastSeen()) > ClientTimeout
}
