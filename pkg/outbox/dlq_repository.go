package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

const (
	maxDLQErrorLen   = 1024
	defaultDLQLimit  = 50
	maxDLQQueryLimit = 500
)

var (
	// ErrDLQEntryNotFound is returned by Requeue when the event was never dead-lettered.
	ErrDLQEntryNotFound = errors.New("dlq entry not found")
	// ErrDLQEntryNotTransient is returned by Requeue for rows that would fail again unchanged.
	ErrDLQEntryNotTransient = errors.New("dlq entry failed non-retryably; requeue with force")
)

type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// DLQFilter narrows List. A nil GasStationID lists every station.
type DLQFilter struct {
	GasStationID *uuid.UUID
	Reason       *enums.OutboxDLQErrorReason
	Since        time.Time
	Limit        int
}

// StationDLQCount is the number of dead-lettered events for one station.
// NonRetryable is the subset that needs a fix before it can be requeued.
type StationDLQCount struct {
	GasStationID uuid.UUID
	Count        int64
	NonRetryable int64
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		msg := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns the newest failures first.
func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultDLQLimit
	case limit > maxDLQQueryLimit:
		limit = maxDLQQueryLimit
	}

	q := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.GasStationID != nil {
		q = q.Where("gas_station_id = ?", *filter.GasStationID)
	}
	if filter.Reason != nil {
		q = q.Where("error_reason = ?", *filter.Reason)
	}
	if !filter.Since.IsZero() {
		q = q.Where("failed_at >= ?", filter.Since)
	}
	var rows []models.OutboxDLQ
	err := q.Order("failed_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// CountByStationSince groups failures recorded at or after since.
func (r *DLQRepository) CountByStationSince(ctx context.Context, since time.Time) ([]StationDLQCount, error) {
	var rows []StationDLQCount
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("gas_station_id, COUNT(*) AS count, SUM(CASE WHEN error_reason = ? THEN 1 ELSE 0 END) AS non_retryable",
			enums.OutboxDLQReasonNonRetryable).
		Where("failed_at >= ?", since).
		Group("gas_station_id").
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}

// Requeue hands a dead-lettered event back to the publisher: the DLQ row is
// removed and the outbox row gets a fresh attempt budget. Non-retryable rows
// are only requeued when force is set.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID, force bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.OutboxDLQ
		err := tx.Where("event_id = ?", eventID).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDLQEntryNotFound
		}
		if err != nil {
			return err
		}
		if !force && !entry.ErrorReason.Transient() {
			return ErrDLQEntryNotTransient
		}
		if err := tx.Delete(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{
				"attempt_count": 0,
				"last_error":    nil,
			}).Error
	})
}
