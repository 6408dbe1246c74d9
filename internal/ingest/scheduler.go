package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newspulse/internal/platform/correlation"
)

// Runner performs one ingest cycle.
type Runner interface {
	Ingest(ctx context.Context) Report
}

// Scheduler invokes a Runner once at start and then on every tick of its interval.
// A cycle that outlasts the interval delays the next one instead of overlapping it.
type Scheduler struct {
	runner   Runner
	clock    clockwork.Clock
	interval time.Duration
}

func NewScheduler(runner Runner, clock clockwork.Clock, interval time.Duration) *Scheduler {
	return &Scheduler{runner: runner, clock: clock, interval: interval}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("Ingest scheduler started", "interval", s.interval)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Ingest scheduler stopped")
			return
		case <-ticker.Chan():
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cycleCtx := correlation.WithID(ctx, correlation.NewID())
	s.runner.Ingest(cycleCtx)
}
