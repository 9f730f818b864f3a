package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

const defaultBacklogAge = 48 * time.Hour

// BacklogRow counts records of one kind still PENDING at one gas station.
type BacklogRow struct {
	GasStationID uuid.UUID
	Record       string
	Count        int64
}

type pendingBacklogRepo interface {
	StalePending(ctx context.Context, cutoff time.Time) ([]BacklogRow, error)
}

// PendingBacklogRepository reads approval queues across every gas station.
type PendingBacklogRepository struct {
	db *gorm.DB
}

func NewPendingBacklogRepository(db *gorm.DB) *PendingBacklogRepository {
	return &PendingBacklogRepository{db: db}
}

// StalePending groups PENDING records created before cutoff by record kind and gas station.
func (r *PendingBacklogRepository) StalePending(ctx context.Context, cutoff time.Time) ([]BacklogRow, error) {
	sources := []struct {
		record string
		model  any
	}{
		{record: "unload", model: &models.Unload{}},
		{record: "titipan_fill", model: &models.TitipanFill{}},
		{record: "tank_reading", model: &models.TankReading{}},
		{record: "deposit", model: &models.Deposit{}},
		{record: "transaction", model: &models.Transaction{}},
	}

	var out []BacklogRow
	for _, src := range sources {
		var counts []struct {
			GasStationID uuid.UUID
			Count        int64
		}
		err := r.db.WithContext(ctx).Model(src.model).
			Select("gas_station_id, COUNT(*) AS count").
			Where("status = ? AND created_at < ?", enums.ApprovalPending, cutoff).
			Group("gas_station_id").
			Order("gas_station_id").
			Scan(&counts).Error
		if err != nil {
			return nil, fmt.Errorf("count pending %s: %w", src.record, err)
		}
		for _, c := range counts {
			out = append(out, BacklogRow{GasStationID: c.GasStationID, Record: src.record, Count: c.Count})
		}
	}
	return out, nil
}

type PendingBacklogJobParams struct {
	Logger     *logger.Logger
	Repository pendingBacklogRepo
	MaxAge     time.Duration
}

// NewPendingBacklogJob builds a job that warns about approvals nobody has decided.
func NewPendingBacklogJob(params PendingBacklogJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("backlog repository required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultBacklogAge
	}
	return &pendingBacklogJob{
		logg:   params.Logger,
		repo:   params.Repository,
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

type pendingBacklogJob struct {
	logg   *logger.Logger
	repo   pendingBacklogRepo
	maxAge time.Duration
	now    func() time.Time
}

func (j *pendingBacklogJob) Name() string { return "pending-approval-backlog" }

func (j *pendingBacklogJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	rows, err := j.repo.StalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pending backlog: %w", err)
	}

	var total int64
	for _, row := range rows {
		total += row.Count
		rowCtx := j.logg.WithGasStationID(ctx, row.GasStationID.String())
		rowCtx = j.logg.WithFields(rowCtx, map[string]any{
			"record":  row.Record,
			"pending": row.Count,
			"cutoff":  cutoff,
		})
		j.logg.Warn(rowCtx, "approvals pending past cutoff")
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"stale_pending": total,
	}), "pending backlog scan complete")
	return nil
}
