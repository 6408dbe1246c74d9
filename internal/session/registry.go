package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
)

const (
	commandBufferSize  = 256
	depthWarnThreshold = 200 // 80% of commandBufferSize
	commandTimeout     = 5 * time.Second
	stopTimeout        = 10 * time.Second
)

// Handle is the deliverable end of a live session. Deliver must not block.
// Implementations must be comparable (typically pointers).
type Handle interface {
	Deliver(message []byte) error
}

// closer is implemented by handles that can be torn down when the registry stops.
type closer interface {
	Close()
}

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type connectCmd struct {
	baseRegistryCmd
	proposedKey string
	handle      Handle
	reply       chan string
}

type swapCmd struct {
	baseRegistryCmd
	oldKey string
	newKey string
	handle Handle // nil swaps unconditionally
	reply  chan bool
}

type disconnectCmd struct {
	baseRegistryCmd
	key    string
	handle Handle // nil removes unconditionally
	reply  chan bool
}

type sendCmd struct {
	baseRegistryCmd
	key     string
	message []byte
	reply   chan error
}

type countCmd struct {
	baseRegistryCmd
	reply chan int
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry maps session keys to live handles.
type Registry struct {
	cmdCh    chan registryCmd
	clock    clockwork.Clock
	metrics  *metrics.SessionMetrics
	sessions map[string]Handle
	newKey   func() string
	done     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(clock clockwork.Clock, m *metrics.SessionMetrics) *Registry {
	r := &Registry{
		cmdCh:    make(chan registryCmd, commandBufferSize),
		clock:    clock,
		metrics:  m,
		sessions: make(map[string]Handle),
		newKey:   uuid.NewString,
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Connect registers handle under a freshly generated key that is not currently in
// use and returns that key. proposedKey is only recorded in logs.
func (r *Registry) Connect(ctx context.Context, proposedKey string, handle Handle) (string, error) {
	reply := make(chan string, 1)
	if err := r.enqueue(ctx, connectCmd{proposedKey: proposedKey, handle: handle, reply: reply}); err != nil {
		return "", err
	}
	return await(ctx, r, reply)
}

// Swap moves the handle registered under oldKey to newKey. If oldKey is unknown the
// registry is left untouched and Swap reports false.
func (r *Registry) Swap(ctx context.Context, oldKey, newKey string) (bool, error) {
	reply := make(chan bool, 1)
	if err := r.enqueue(ctx, swapCmd{oldKey: oldKey, newKey: newKey, reply: reply}); err != nil {
		return false, err
	}
	return await(ctx, r, reply)
}

// Promote is Swap restricted to the owner: oldKey moves to newKey only while it
// still maps to handle. A connection whose key was taken over by a newer
// connection of the same user gets false and cannot move that newer entry.
func (r *Registry) Promote(ctx context.Context, oldKey, newKey string, handle Handle) (bool, error) {
	reply := make(chan bool, 1)
	if err := r.enqueue(ctx, swapCmd{oldKey: oldKey, newKey: newKey, handle: handle, reply: reply}); err != nil {
		return false, err
	}
	return await(ctx, r, reply)
}

// Disconnect removes key if present.
func (r *Registry) Disconnect(ctx context.Context, key string) error {
	reply := make(chan bool, 1)
	if err := r.enqueue(ctx, disconnectCmd{key: key, reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, r, reply)
	return err
}

// Release removes key only while it still maps to handle. A connection that lost its
// key to a newer connection of the same user cannot evict that newer entry.
func (r *Registry) Release(ctx context.Context, key string, handle Handle) error {
	reply := make(chan bool, 1)
	if err := r.enqueue(ctx, disconnectCmd{key: key, handle: handle, reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, r, reply)
	return err
}

// Send delivers message to the session registered under key. An unknown key is
// logged and is not an error. A DeliveryError is returned when the session's
// mailbox rejects the message or the registry cannot be reached.
func (r *Registry) Send(ctx context.Context, key string, message []byte) error {
	reply := make(chan error, 1)
	if err := r.enqueue(ctx, sendCmd{key: key, message: message, reply: reply}); err != nil {
		return domain.NewDeliveryError("send", err)
	}
	deliveryErr, err := await(ctx, r, reply)
	if err != nil {
		return domain.NewDeliveryError("send", err)
	}
	return deliveryErr
}

// Count returns the number of registered sessions.
func (r *Registry) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := r.enqueue(ctx, countCmd{reply: reply}); err != nil {
		return 0, err
	}
	return await(ctx, r, reply)
}

// Stop closes every registered handle that supports it and shuts the registry down.
// Blocks until the registry goroutine has exited or the stop timeout is reached.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		select {
		case r.cmdCh <- stopCmd{}:
		case <-r.done:
			return
		}

		timeout := r.clock.NewTimer(stopTimeout)
		defer timeout.Stop()

		select {
		case <-r.done:
			slog.Info("Session registry stopped")
		case <-timeout.Chan():
			slog.Warn("Session registry stop timeout exceeded", "timeout", stopTimeout)
		}
	})
}

func (r *Registry) enqueue(ctx context.Context, cmd registryCmd) error {
	select {
	case r.cmdCh <- cmd:
		return nil
	case <-r.done:
		return domain.ErrRegistryStopped
	case <-ctx.Done():
		return fmt.Errorf("registry command not accepted: %w", ctx.Err())
	}
}

func await[T any](ctx context.Context, r *Registry, reply <-chan T) (T, error) {
	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		return zero, domain.ErrRegistryStopped
	case <-ctx.Done():
		return zero, fmt.Errorf("registry command abandoned: %w", ctx.Err())
	case <-timer.Chan():
		return zero, fmt.Errorf("registry command timed out after %v", commandTimeout)
	}
}

func (r *Registry) run() {
	defer close(r.done)
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Session registry panic recovered", "panic", p)
			r.closeAll()
		}
	}()

	depthTicker := r.clock.NewTicker(time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(r.cmdCh)
			r.metrics.CommandQueueDepth.Set(float64(depth))
			if depth > depthWarnThreshold {
				slog.Warn("Session registry command queue near capacity", "depth", depth, "capacity", cap(r.cmdCh))
			}

		case cmd := <-r.cmdCh:
			switch c := cmd.(type) {
			case connectCmd:
				r.handleConnect(c)
			case swapCmd:
				r.handleSwap(c)
			case disconnectCmd:
				r.handleDisconnect(c)
			case sendCmd:
				r.handleSend(c)
			case countCmd:
				c.reply <- len(r.sessions)
			case stopCmd:
				r.closeAll()
				return
			default:
				slog.Warn("Session registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (r *Registry) handleConnect(c connectCmd) {
	key := r.newKey()
	for {
		if _, taken := r.sessions[key]; !taken {
			break
		}
		key = r.newKey()
	}

	r.sessions[key] = c.handle
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))

	slog.Debug("Session connected", "session_key", key, "proposed_key", c.proposedKey, "total_sessions", len(r.sessions))
	c.reply <- key
}

func (r *Registry) handleSwap(c swapCmd) {
	handle, ok := r.sessions[c.oldKey]
	if !ok {
		r.metrics.SwapMisses.Inc()
		slog.Warn("Session does not exist, could not swap key", "session_key", c.oldKey, "new_key", c.newKey)
		c.reply <- false
		return
	}
	if c.handle != nil && handle != c.handle {
		r.metrics.SwapMisses.Inc()
		slog.Warn("Session key owned by another connection, could not swap key", "session_key", c.oldKey, "new_key", c.newKey)
		c.reply <- false
		return
	}

	if c.oldKey != c.newKey {
		if existing, taken := r.sessions[c.newKey]; taken && existing != handle {
			slog.Info("Session key taken over by newer connection", "session_key", c.newKey)
		}
		delete(r.sessions, c.oldKey)
		r.sessions[c.newKey] = handle
	}

	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
	slog.Debug("Session key swapped", "old_key", c.oldKey, "new_key", c.newKey)
	c.reply <- true
}

func (r *Registry) handleDisconnect(c disconnectCmd) {
	handle, ok := r.sessions[c.key]
	if !ok || (c.handle != nil && handle != c.handle) {
		c.reply <- false
		return
	}

	delete(r.sessions, c.key)
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))

	slog.Debug("Session disconnected", "session_key", c.key, "remaining_sessions", len(r.sessions))
	c.reply <- true
}

func (r *Registry) handleSend(c sendCmd) {
	handle, ok := r.sessions[c.key]
	if !ok {
		r.metrics.UnknownSends.Inc()
		slog.Warn("Tried to send message to unknown session", "session_key", c.key)
		c.reply <- nil
		return
	}

	if err := handle.Deliver(c.message); err != nil {
		r.metrics.Deliveries.WithLabelValues("failed").Inc()
		c.reply <- domain.NewDeliveryError("deliver to "+c.key, err)
		return
	}

	r.metrics.Deliveries.WithLabelValues("delivered").Inc()
	c.reply <- nil
}

func (r *Registry) closeAll() {
	for key, handle := range r.sessions {
		if h, ok := handle.(closer); ok {
			h.Close()
		}
		delete(r.sessions, key)
	}
	r.metrics.ActiveSessions.Set(0)
}
