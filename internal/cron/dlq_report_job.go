package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
)

const defaultDLQReportWindow = time.Hour

type dlqCounter interface {
	CountByStationSince(ctx context.Context, since time.Time) ([]outbox.StationDLQCount, error)
}

type DLQReportJobParams struct {
	Logger     *logger.Logger
	Repository dlqCounter
	// Window should match the job's cadence so each failure is reported once.
	Window time.Duration
}

// NewDLQReportJob builds a job that warns, per station, about outbox events
// dead-lettered during the last window.
func NewDLQReportJob(params DLQReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultDLQReportWindow
	}
	return &dlqReportJob{
		logg:   params.Logger,
		repo:   params.Repository,
		window: window,
		now:    time.Now,
	}, nil
}

type dlqReportJob struct {
	logg   *logger.Logger
	repo   dlqCounter
	window time.Duration
	now    func() time.Time
}

func (j *dlqReportJob) Name() string { return "outbox-dlq-report" }

func (j *dlqReportJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.window)
	counts, err := j.repo.CountByStationSince(ctx, since)
	if err != nil {
		return fmt.Errorf("dlq report: %w", err)
	}
	var total int64
	for _, c := range counts {
		total += c.Count
		rowCtx := j.logg.WithGasStationID(ctx, c.GasStationID.String())
		j.logg.Warn(j.logg.WithFields(rowCtx, map[string]any{
			"dead_lettered": c.Count,
			"non_retryable": c.NonRetryable,
		}), "outbox events dead-lettered")
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"since":         since,
		"dead_lettered": total,
	}), "dlq report complete")
	return nil
}
