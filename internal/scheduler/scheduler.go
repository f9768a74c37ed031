package scheduler

import (
	"context"
	"time"

	"myme/internal/logger"
)

// JobFunc does one round of periodic work as of now.
type JobFunc func(ctx context.Context, now time.Time) error

type job struct {
	name string
	run  JobFunc
}

// Scheduler runs its jobs one after another on every tick. A failing job is
// logged and retried on the next tick; it never stops the loop.
type Scheduler struct {
	interval time.Duration
	jobs     []job
	now      func() time.Time
}

func New(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{interval: interval, now: time.Now}
}

func (s *Scheduler) Add(name string, fn JobFunc) {
	s.jobs = append(s.jobs, job{name: name, run: fn})
}

// Start runs every job immediately, then once per interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("scheduler started", "interval", s.interval.String(), "jobs", len(s.jobs))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job once and returns the number that failed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	failed := 0
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			return failed
		}
		start := s.now()
		if err := j.run(ctx, start); err != nil {
			failed++
			logger.Error("scheduled job failed", "job", j.name, "error", err)
			continue
		}
		logger.Debug("scheduled job finished", "job", j.name, "duration", time.Since(start).String())
	}
	return failed
}
