package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type fakePruner struct {
	cutoff      time.Time
	minAttempts int
	calls       int
	err         error
}

func (f *fakePruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttempts int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	f.minAttempts = minAttempts
	return 7, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.Nop()
	params.DB = passthroughTx{}
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionDefaults(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{Repository: pruner})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, pruner.calls)
	require.True(t, pruner.cutoff.Equal(now.Add(-30*24*time.Hour)))
	require.Equal(t, defaultDeadAttempts, pruner.minAttempts)
}

func TestOutboxRetentionUsesConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{Repository: pruner, Retention: 7, MinAttempts: 3})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.True(t, pruner.cutoff.Equal(now.Add(-7*24*time.Hour)))
	require.Equal(t, 3, pruner.minAttempts)
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	job := newRetentionJob(t, OutboxRetentionJobParams{Repository: &fakePruner{err: errors.New("boom")}})
	require.Error(t, job.Run(context.Background()))
}
