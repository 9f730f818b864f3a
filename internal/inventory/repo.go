package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Repository reads the approved event stream of a tank.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTank(ctx context.Context, id uuid.UUID) (*models.Tank, error)
	LockTank(ctx context.Context, id uuid.UUID) (*models.Tank, error)
	ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]models.Tank, error)
	LatestApprovedReading(ctx context.Context, tankID uuid.UUID, at *time.Time, exclude *uuid.UUID) (*models.TankReading, error)
	ApprovedUnloadLiters(ctx context.Context, tankID uuid.UUID, after, upTo time.Time) ([]decimal.Decimal, error)
	ApprovedTitipanLiters(ctx context.Context, tankID uuid.UUID, after, upTo time.Time) ([]decimal.Decimal, error)
	CompletedNozzleReadings(ctx context.Context, tankID uuid.UUID, after, upTo time.Time) ([]ShiftNozzleReading, error)
	ApprovedDeliveryTimes(ctx context.Context, tankID uuid.UUID, after, upTo time.Time) ([]time.Time, error)
	ShiftsSpanning(ctx context.Context, tankID uuid.UUID, at time.Time) ([]uuid.UUID, error)
}

// ShiftNozzleReading is a totalizer row of a completed shift.
type ShiftNozzleReading struct {
	ShiftID   uuid.UUID         `gorm:"column:shift_id"`
	NozzleID  uuid.UUID         `gorm:"column:nozzle_id"`
	Type      enums.ReadingType `gorm:"column:type"`
	Totalizer decimal.Decimal   `gorm:"column:totalizer"`
	PumpTest  decimal.Decimal   `gorm:"column:pump_test"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTank(ctx context.Context, id uuid.UUID) (*models.Tank, error) {
	var tank models.Tank
	if err := r.db.WithContext(ctx).Preload("Product").First(&tank, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tank, nil
}

// LockTank takes the row lock every stock-changing write holds until commit.
func (r *repository) LockTank(ctx context.Context, id uuid.UUID) (*models.Tank, error) {
	var tank models.Tank
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tank, "id = ?", id).Error; err != nil {
		return nil, err
	}
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", tank.ProductID).Error; err != nil {
		return nil, err
	}
	tank.Product = &product
	return &tank, nil
}

func (r *repository) ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]models.Tank, error) {
	var tanks []models.Tank
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("gas_station_id = ? AND lifecycle = ?", gasStationID, enums.LifecycleActive).
		Order("name ASC").
		Find(&tanks).Error; err != nil {
		return nil, err
	}
	return tanks, nil
}

// LatestApprovedReading finds the newest approved reading taken at or before
// at; a nil at means no upper bound.
func (r *repository) LatestApprovedReading(ctx context.Context, tankID uuid.UUID, at *time.Time, exclude *uuid.UUID) (*models.TankReading, error) {
	query := r.db.WithContext(ctx).
		Where("tank_id = ? AND status = ?", tankID, enums.ApprovalApproved)
	if at != nil {
		query = query.Where("reading_at <= ?", *at)
	}
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}
	var reading models.TankReading
	err := query.Order("reading_at DESC, created_at DESC").First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *repository) ApprovedUnloadLiters(ctx context.Context, tankID uuid.UUID, after, upTo time.Time) ([]decimal.Decimal, error) {
	var liters []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Unload{}).
		Where("tank_id = ? AND status = ? AND unloaded_at > ? AND unloaded_at <= ?", tankID, enums.ApprovalApproved, after, upTo).
		Pluck("liters", &liters).Error
	return liters, err
}

func (r *repository) ApprovedTitipanLiters(ctx context.Context, tankID uuid.UUID, after, upTo time.Time) ([]decimal.Decimal, error) {
	var liters []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.TitipanFill{}).
		Where("tank_id = ? AND status = ? AND filled_at > ? AND filled_at <= ?", tankID, enums.ApprovalApproved, after, upTo).
		Pluck("liters", &liters).Error
	return liters, err
}

func (r *repository) CompletedNozzleReadings(ctx context.Context, tankID uuid.UUID, after, upTo time.Time) ([]ShiftNozzleReading, error) {
	var rows []ShiftNozzleReading
	err := r.db.WithContext(ctx).
		Table("nozzle_readings AS nr").
		Select("nr.shift_id AS shift_id, nr.nozzle_id AS nozzle_id, nr.type AS type, nr.totalizer AS totalizer, nr.pump_test AS pump_test").
		Joins("JOIN operator_shifts s ON s.id = nr.shift_id").
		Joins("JOIN nozzles n ON n.id = nr.nozzle_id").
		Where("n.tank_id = ? AND s.status = ? AND s.ended_at > ? AND s.ended_at <= ?", tankID, enums.ShiftCompleted, after, upTo).
		Scan(&rows).Error
	return rows, err
}

// ApprovedDeliveryTimes lists when approved unloads and titipan fills landed
// in (after, upTo].
func (r *repository) ApprovedDeliveryTimes(ctx context.Context, tankID uuid.UUID, after, upTo time.Time) ([]time.Time, error) {
	var unloads, fills []time.Time
	if err := r.db.WithContext(ctx).
		Model(&models.Unload{}).
		Where("tank_id = ? AND status = ? AND unloaded_at > ? AND unloaded_at <= ?", tankID, enums.ApprovalApproved, after, upTo).
		Pluck("unloaded_at", &unloads).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.TitipanFill{}).
		Where("tank_id = ? AND status = ? AND filled_at > ? AND filled_at <= ?", tankID, enums.ApprovalApproved, after, upTo).
		Pluck("filled_at", &fills).Error; err != nil {
		return nil, err
	}
	return append(unloads, fills...), nil
}

// ShiftsSpanning finds shifts on islands with a nozzle drawing from the tank
// that started before at and had not ended by it.
func (r *repository) ShiftsSpanning(ctx context.Context, tankID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	islands := r.db.WithContext(ctx).Model(&models.Nozzle{}).Select("station_id").Where("tank_id = ?", tankID)
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.OperatorShift{}).
		Where("station_id IN (?)", islands).
		Where("started_at < ? AND (ended_at IS NULL OR ended_at > ?)", at, at).
		Order("started_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}
