package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/metrics"
)

type fakeLock struct {
	held     map[string]bool
	refuse   map[string]bool
	acquired []string
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: map[string]bool{}, refuse: map[string]bool{}}
}

func (f *fakeLock) Acquire(_ context.Context, job string, _ time.Duration) (bool, error) {
	if f.refuse[job] || f.held[job] {
		return false, nil
	}
	f.held[job] = true
	f.acquired = append(f.acquired, job)
	return true, nil
}

func (f *fakeLock) Release(_ context.Context, job string) error {
	delete(f.held, job)
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

func newTestCron(t *testing.T, lock Lock, registry *Registry) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestRunDueRunsEveryJobEvenAfterFailure(t *testing.T) {
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "fail", err: errors.New("boom")}
	registry := NewRegistry()
	registry.Register(failing, time.Hour)
	registry.Register(ok, time.Hour)
	lock := newFakeLock()
	svc := newTestCron(t, lock, registry)

	svc.runDue(context.Background())

	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, ok.runs)
	require.Empty(t, lock.held, "locks are released after each job")
}

func TestRunDueHonoursEachCadence(t *testing.T) {
	hourly := &countingJob{name: "hourly"}
	daily := &countingJob{name: "daily"}
	registry := NewRegistry()
	registry.Register(hourly, time.Hour)
	registry.Register(daily, 24*time.Hour)
	svc := newTestCron(t, newFakeLock(), registry)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	svc.runDue(context.Background())

	now = now.Add(30 * time.Minute)
	svc.runDue(context.Background())
	require.Equal(t, 1, hourly.runs)

	now = now.Add(31 * time.Minute)
	svc.runDue(context.Background())
	require.Equal(t, 2, hourly.runs)
	require.Equal(t, 1, daily.runs)

	now = now.Add(24 * time.Hour)
	svc.runDue(context.Background())
	require.Equal(t, 3, hourly.runs)
	require.Equal(t, 2, daily.runs)
}

func TestRunDueSkipsJobHeldElsewhere(t *testing.T) {
	job := &countingJob{name: "outbox-retention"}
	registry := NewRegistry()
	registry.Register(job, time.Hour)
	lock := newFakeLock()
	lock.refuse["outbox-retention"] = true
	svc := newTestCron(t, lock, registry)

	svc.runDue(context.Background())
	require.Zero(t, job.runs)
}
