// Package cron runs the maintenance jobs of the cron-worker: each job on its
// own cadence, guarded by a per-job distributed lock.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/metrics"
)

const defaultTick = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Tick is how often the scheduler checks for due jobs.
	Tick time.Duration
}

type Service struct {
	logg     *logger.Logger
	schedule []entry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
	nextRun  map[string]time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:     params.Logger,
		schedule: registry.schedule(),
		lock:     params.Lock,
		metrics:  params.Metrics,
		tick:     tick,
		now:      time.Now,
		nextRun:  map[string]time.Time{},
	}, nil
}

// Run executes due jobs immediately and then on every tick until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue runs every job whose next run time has passed. A job that fails or
// loses the lock is still rescheduled a full interval later.
func (s *Service) runDue(ctx context.Context) {
	now := s.now()
	for _, e := range s.schedule {
		name := e.job.Name()
		if next, ok := s.nextRun[name]; ok && now.Before(next) {
			continue
		}
		s.nextRun[name] = now.Add(e.every)
		s.runLocked(ctx, e)
	}
}

func (s *Service) runLocked(ctx context.Context, e entry) {
	name := e.job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	locked, err := s.lock.Acquire(ctx, name, e.every)
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire failed", err)
		s.metrics.ObserveRun(name, metrics.CronOutcomeFailure, 0, time.Now())
		return
	}
	if !locked {
		s.logg.Info(jobCtx, "job held by another worker; skipping")
		s.metrics.ObserveRun(name, metrics.CronOutcomeSkipped, 0, time.Now())
		return
	}
	defer func() {
		if err := s.lock.Release(ctx, name); err != nil {
			s.logg.Error(jobCtx, "failed to release cron lock", err)
		}
	}()

	start := time.Now()
	err = e.job.Run(jobCtx)
	finished := time.Now()
	duration := finished.Sub(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.ObserveRun(name, metrics.CronOutcomeFailure, duration, finished)
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.ObserveRun(name, metrics.CronOutcomeSuccess, duration, finished)
}
