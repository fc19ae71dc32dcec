// Package scheduler runs named tasks on fixed intervals.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Task is a unit of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs every task once at start and then on each tick of its
// interval. A failing task is logged and retried on its next tick.
type Scheduler struct {
	tasks   []Task
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Scheduler. A nil clock uses the real clock.
func New(clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, tasks ...Task) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		tasks:   tasks,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Run blocks until ctx is cancelled and every task has returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "tasks", len(s.tasks))
	s.metrics.MonitorRunning.Set(1)
	defer s.metrics.MonitorRunning.Set(0)

	var wg sync.WaitGroup
	for _, t := range s.tasks {
		if t.Interval <= 0 {
			s.logger.Warn("task has no interval, skipping", "task", t.Name)
			continue
		}
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.loop(ctx, t)
		}(t)
	}
	wg.Wait()
	s.logger.Info("scheduler stopped", "reason", ctx.Err())
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	ticker := s.clock.NewTicker(t.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}
	start := s.clock.Now()
	err := t.Run(ctx)
	s.metrics.TaskDuration.WithLabelValues(t.Name).Observe(s.clock.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("task failed", "task", t.Name, "error", err)
		return
	}
	s.logger.Debug("task completed", "task", t.Name)
}
