package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	defaultSeenLogInterval = 24 * time.Hour
	shutdownFlushTimeout   = 10 * time.Second
)

// Scheduler drives the engine: the first iteration runs immediately, later
// ones on a fixed interval, until the context is canceled or the failure
// score turns fatal.
type Scheduler struct {
	engine   *Engine
	schedule cron.Schedule
	interval time.Duration
	log      *slog.Logger

	wait            func(ctx context.Context, d time.Duration) error
	nowFunc         func() time.Time
	seenLogInterval time.Duration
	lastSeenLog     time.Time
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithWaitFunc replaces the sleep between iterations.
func WithWaitFunc(f func(ctx context.Context, d time.Duration) error) SchedulerOption {
	return func(s *Scheduler) {
		s.wait = f
	}
}

// WithSchedulerNowFunc overrides the clock.
func WithSchedulerNowFunc(f func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.nowFunc = f
	}
}

// WithSeenLogInterval sets how often seen-set sizes are logged at debug
// level.
func WithSeenLogInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.seenLogInterval = d
	}
}

// NewScheduler creates a Scheduler running eng every interval. Intervals
// under a second are rounded up to one.
func NewScheduler(eng *Engine, interval time.Duration, log *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		engine:          eng,
		schedule:        cron.Every(interval),
		interval:        interval,
		log:             log,
		wait:            sleepContext,
		nowFunc:         time.Now,
		seenLogInterval: defaultSeenLogInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns when the iteration after one finishing at t starts.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is canceled, returning nil after flushing the seen
// record, or until the failure score crosses the ceiling, returning the
// *FatalError.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("poll loop started",
		"interval", s.interval.String(),
		"queries", len(s.engine.queries),
	)
	s.lastSeenLog = s.nowFunc()

	for {
		err := s.engine.Iterate(ctx)

		var fatal *FatalError
		if errors.As(err, &fatal) {
			if flushErr := s.flush(ctx); flushErr != nil {
				s.log.Error("final snapshot save failed", "error", flushErr)
			}
			return fatal
		}
		if ctx.Err() != nil {
			return s.shutdown(ctx)
		}

		now := s.nowFunc()
		if now.Sub(s.lastSeenLog) >= s.seenLogInterval {
			s.engine.LogSeenCounts(ctx)
			s.lastSeenLog = now
		}

		next := s.Next(now)
		s.log.Debug("sleeping until next iteration", "next", next.Format(time.RFC3339))
		if err := s.wait(ctx, next.Sub(now)); err != nil {
			return s.shutdown(ctx)
		}
	}
}

func (s *Scheduler) shutdown(ctx context.Context) error {
	s.log.Info("poll loop stopping")
	if err := s.flush(ctx); err != nil {
		return fmt.Errorf("saving snapshot on shutdown: %w", err)
	}
	return nil
}

func (s *Scheduler) flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	return s.engine.Flush(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
