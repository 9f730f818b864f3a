package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
)

func seedEvent(t *testing.T, db *gorm.DB, repo *outbox.Repository, createdAt time.Time) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventDepositApproved,
		AggregateType: enums.AggregateDeposit,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"event_id":"x","occurred_at":"2026-03-01T00:00:00Z","data":{}}`),
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.Insert(tx, event)
	}))
	return event
}

func TestPublishCycleInsideTransaction(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewRepository(db)
	now := time.Now().UTC()
	first := seedEvent(t, db, repo, now.Add(-2*time.Minute))
	second := seedEvent(t, db, repo, now.Add(-time.Minute))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, first.ID, rows[0].ID)

		require.NoError(t, repo.MarkPublishedTx(tx, first.ID))
		return repo.MarkFailedTx(tx, second.ID, errors.New("broker down"))
	}))

	pending, err := repo.FetchUnpublished(context.Background(), 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	require.Equal(t, "broker down", *pending[0].LastError)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, second.ID, errors.New("bad payload"), 3)
	}))
	pending, err = repo.FetchUnpublished(context.Background(), 10, 3)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDeletePublishedBeforeKeepsPendingRows(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewRepository(db)
	ctx := context.Background()
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)

	published := seedEvent(t, db, repo, old)
	dead := seedEvent(t, db, repo, old)
	pending := seedEvent(t, db, repo, old)
	recent := seedEvent(t, db, repo, time.Now().UTC())

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkPublishedTx(tx, published.ID); err != nil {
			return err
		}
		if err := repo.MarkPublishedTx(tx, recent.ID); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, dead.ID, errors.New("bad payload"), 5)
	}))

	deleted, err := repo.DeletePublishedBefore(ctx, nil, time.Now().UTC().Add(-30*24*time.Hour), 5)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	rows, err := repo.ListForAggregate(ctx, pending.AggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	rows, err = repo.ListForAggregate(ctx, recent.AggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
