package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const breakerComponent = "redis"

// CircuitBreakerHook implements redis.Hook and guards every dial, command and
// pipeline with a circuit breaker. While the circuit is open, calls fail with an
// error wrapping circuitbreaker.ErrOpen without touching the network.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// BreakerSettings tunes the breaker. The zero value is not useful; start from
// DefaultBreakerSettings.
type BreakerSettings struct {
	FailureRate      uint
	MinExecutions    uint
	FailureWindow    time.Duration
	Delay            time.Duration
	SuccessThreshold uint
}

// DefaultBreakerSettings opens the circuit at a 60% failure rate over at least
// 5 calls in 10s, probes again after 30s and closes after one success.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureRate:      60,
		MinExecutions:    5,
		FailureWindow:    10 * time.Second,
		Delay:            30 * time.Second,
		SuccessThreshold: 1,
	}
}

func NewCircuitBreakerHook(settings BreakerSettings, m *metrics.BrokerMetrics) *CircuitBreakerHook {
	m.CircuitState.WithLabelValues(breakerComponent).Set(stateToFloat(circuitbreaker.ClosedState))

	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(settings.FailureRate, settings.MinExecutions, settings.FailureWindow).
		WithDelay(settings.Delay).
		WithSuccessThreshold(settings.SuccessThreshold).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", breakerComponent,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			m.CircuitStateChanges.WithLabelValues(breakerComponent, e.NewState.String()).Inc()
			m.CircuitState.WithLabelValues(breakerComponent).Set(stateToFloat(e.NewState))
		}).
		Build()

	return &CircuitBreakerHook{cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		h.record(err)
		return conn, err
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		err := next(ctx, cmd)
		h.record(err)
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		err := next(ctx, cmds)
		h.record(err)
		return err
	}
}

// record counts an outcome and returns the permit taken by TryAcquirePermit.
// redis.Nil (empty reads, block timeouts) and cancellation by the caller do not
// say anything about Redis health, so they count as successes. Every acquired
// permit must end in exactly one record call.
func (h *CircuitBreakerHook) record(err error) {
	switch {
	case err == nil, errors.Is(err, goredis.Nil), errors.Is(err, context.Canceled):
		h.cb.RecordSuccess()
	default:
		h.cb.RecordError(err)
	}
}

// State returns the current breaker state.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}
