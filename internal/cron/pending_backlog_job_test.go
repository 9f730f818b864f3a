package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

func TestPendingBacklogRepositoryCountsOnlyStalePending(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewPendingBacklogRepository(db)
	now := time.Now().UTC()
	stationA := uuid.New()
	stationB := uuid.New()

	seed := func(gsID uuid.UUID, status enums.ApprovalStatus, createdAt time.Time) {
		require.NoError(t, db.Create(&models.Transaction{
			GasStationID: gsID,
			Date:         createdAt,
			Type:         enums.TransactionCash,
			Status:       status,
			Origin:       enums.OriginManual,
			CreatedBy:    uuid.New(),
			CreatedAt:    createdAt,
		}).Error)
	}
	seed(stationA, enums.ApprovalPending, now.Add(-72*time.Hour))
	seed(stationA, enums.ApprovalPending, now.Add(-96*time.Hour))
	seed(stationA, enums.ApprovalApproved, now.Add(-96*time.Hour))
	seed(stationB, enums.ApprovalPending, now.Add(-time.Hour))

	rows, err := repo.StalePending(context.Background(), now.Add(-defaultBacklogAge))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, stationA, rows[0].GasStationID)
	require.Equal(t, "transaction", rows[0].Record)
	require.EqualValues(t, 2, rows[0].Count)
}

func TestPendingBacklogJobUsesCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeBacklogRepo{rows: []BacklogRow{{GasStationID: uuid.New(), Record: "deposit", Count: 3}}}
	jobIface, err := NewPendingBacklogJob(PendingBacklogJobParams{Logger: logger.Nop(), Repository: repo})
	require.NoError(t, err)
	job := jobIface.(*pendingBacklogJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.True(t, repo.cutoff.Equal(now.Add(-defaultBacklogAge)))
}

func TestPendingBacklogJobPropagatesError(t *testing.T) {
	jobIface, err := NewPendingBacklogJob(PendingBacklogJobParams{
		Logger:     logger.Nop(),
		Repository: &fakeBacklogRepo{err: errors.New("boom")},
	})
	require.NoError(t, err)
	require.Error(t, jobIface.Run(context.Background()))
}

type fakeBacklogRepo struct {
	rows   []BacklogRow
	cutoff time.Time
	err    error
}

func (f *fakeBacklogRepo) StalePending(_ context.Context, cutoff time.Time) ([]BacklogRow, error) {
	f.cutoff = cutoff
	return f.rows, f.err
}
