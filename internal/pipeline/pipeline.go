// Package pipeline drives broker messages through a Processor.
//
// A Driver pairs one Consumer with one Processor and runs them in a strict
// consume -> process -> consume loop, so messages are handled in the order the broker
// delivers them. Failures are logged and never stop the loop; only cancelling the
// context passed to Run does.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/platform/correlation"
)

// Consumer blocks until the next message is available and returns its payload.
type Consumer interface {
	Consume(ctx context.Context) (string, error)
}

// Processor reacts to one message payload.
type Processor interface {
	Process(ctx context.Context, payload string) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, payload string) error

func (f ProcessorFunc) Process(ctx context.Context, payload string) error {
	return f(ctx, payload)
}

type Driver struct {
	name       string
	consumer   Consumer
	processor  Processor
	clock      clockwork.Clock
	metrics    *metrics.PipelineMetrics
	errorDelay time.Duration
}

// NewDriver builds a Driver. name labels logs and metrics. errorDelay pauses the loop
// after a failed consume; zero retries immediately.
func NewDriver(name string, consumer Consumer, processor Processor, clock clockwork.Clock, m *metrics.PipelineMetrics, errorDelay time.Duration) *Driver {
	return &Driver{
		name:       name,
		consumer:   consumer,
		processor:  processor,
		clock:      clock,
		metrics:    m,
		errorDelay: errorDelay,
	}
}

// Run loops until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	slog.Info("Pipeline started", "pipeline", d.name)
	defer slog.Info("Pipeline stopped", "pipeline", d.name)

	for ctx.Err() == nil {
		payload, err := d.consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return
			}
			d.metrics.ConsumeErrors.WithLabelValues(d.name).Inc()
			slog.Error("Failed to consume message", "pipeline", d.name, "error", err)
			d.backOff(ctx)
			continue
		}

		d.metrics.MessagesConsumed.WithLabelValues(d.name).Inc()
		d.process(ctx, payload)
	}
}

func (d *Driver) process(ctx context.Context, payload string) {
	msgCtx := correlation.WithID(ctx, correlation.NewID())

	start := d.clock.Now()
	err := d.processor.Process(msgCtx, payload)
	d.metrics.ProcessDuration.WithLabelValues(d.name).Observe(d.clock.Since(start).Seconds())

	if err != nil {
		d.metrics.ProcessErrors.WithLabelValues(d.name).Inc()
		slog.ErrorContext(msgCtx, "Failed to process message", "pipeline", d.name, "error", err)
	}
}

func (d *Driver) backOff(ctx context.Context) {
	if d.errorDelay <= 0 {
		return
	}
	timer := d.clock.NewTimer(d.errorDelay)
	defer timer.Stop()

	select {
	case <-timer.Chan():
	case <-ctx.Done():
	}
}
