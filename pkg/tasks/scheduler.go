package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each job once at start and then on its interval.
type Scheduler struct {
	jobs   []Job
	logger *zap.Logger
}

// NewScheduler returns an empty Scheduler
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Add registers a job. Jobs with a non-positive interval are disabled.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 || job.Run == nil {
		s.logger.Info("Scheduled task disabled", zap.String("task", job.Name))
		return
	}
	s.jobs = append(s.jobs, job)
}

// Jobs returns the names of the enabled jobs.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	return names
}

// Run blocks until ctx is done. A failing run is logged and retried on the
// next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("Scheduled task started",
		zap.String("task", job.Name),
		zap.Duration("interval", job.Interval))

	for {
		s.runOnce(ctx, job)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := safeRun(ctx, job)
	fields := []zap.Field{zap.String("task", job.Name), zap.Duration("duration", time.Since(start))}
	if err != nil {
		s.logger.Error("Scheduled task failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Debug("Scheduled task finished", fields...)
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return job.Run(ctx)
}
