package shifts

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
	"github.com/angelmondragon/fuelstation-backend/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockStation(ctx context.Context, id uuid.UUID) (*models.Station, error)
	FindGasStation(ctx context.Context, id uuid.UUID) (*models.GasStation, error)
	CountForDay(ctx context.Context, stationID uuid.UUID, shiftDate string) (int64, error)
	FindActiveByStation(ctx context.Context, stationID uuid.UUID) (*models.OperatorShift, error)
	FindActiveByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorShift, error)
	Create(ctx context.Context, shift *models.OperatorShift) error
	Find(ctx context.Context, id uuid.UUID) (*models.OperatorShift, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.OperatorShift, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateReadings(ctx context.Context, readings []models.NozzleReading) error
	UpdateReading(ctx context.Context, id uuid.UUID, updates map[string]any) error
	PreviousClose(ctx context.Context, nozzleID uuid.UUID, before time.Time, excludeShiftID uuid.UUID) (*ChainReading, error)
	NextOpen(ctx context.Context, nozzleID uuid.UUID, after time.Time, excludeShiftID uuid.UUID) (*ChainReading, error)
	DepositStatus(ctx context.Context, shiftID uuid.UUID) (*enums.ApprovalStatus, error)
	List(ctx context.Context, filter ListFilter) ([]models.OperatorShift, error)
}

// ChainReading is a neighbouring completed shift's reading for one nozzle.
type ChainReading struct {
	ShiftID   uuid.UUID       `gorm:"column:shift_id"`
	Totalizer decimal.Decimal `gorm:"column:totalizer"`
}

// ListFilter narrows shift listings.
type ListFilter struct {
	GasStationID uuid.UUID
	StationID    *uuid.UUID
	OperatorID   *uuid.UUID
	Status       *enums.ShiftStatus
	ShiftDate    string
	Cursor       *pagination.Cursor
	Limit        int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shift repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockStation serialises check-ins on one dispensing island and returns it
// with its active nozzles.
func (r *repository) LockStation(ctx context.Context, id uuid.UUID) (*models.Station, error) {
	var station models.Station
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&station, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("station_id = ? AND lifecycle = ?", id, enums.LifecycleActive).
		Order("code ASC").
		Find(&station.Nozzles).Error; err != nil {
		return nil, err
	}
	return &station, nil
}

func (r *repository) FindGasStation(ctx context.Context, id uuid.UUID) (*models.GasStation, error) {
	var gs models.GasStation
	if err := r.db.WithContext(ctx).First(&gs, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &gs, nil
}

func (r *repository) CountForDay(ctx context.Context, stationID uuid.UUID, shiftDate string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OperatorShift{}).
		Where("station_id = ? AND shift_date = ?", stationID, shiftDate).
		Count(&count).Error
	return count, err
}

func (r *repository) FindActiveByStation(ctx context.Context, stationID uuid.UUID) (*models.OperatorShift, error) {
	return r.findActive(ctx, "station_id = ?", stationID)
}

func (r *repository) FindActiveByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorShift, error) {
	return r.findActive(ctx, "operator_id = ?", operatorID)
}

func (r *repository) findActive(ctx context.Context, cond string, arg uuid.UUID) (*models.OperatorShift, error) {
	var shift models.OperatorShift
	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Where("status = ?", enums.ShiftStarted).
		First(&shift).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *repository) Create(ctx context.Context, shift *models.OperatorShift) error {
	return r.db.WithContext(ctx).Create(shift).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.OperatorShift, error) {
	var shift models.OperatorShift
	if err := r.db.WithContext(ctx).
		Preload("Readings", func(db *gorm.DB) *gorm.DB { return db.Order("type DESC, nozzle_id ASC") }).
		First(&shift, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.OperatorShift, error) {
	var shift models.OperatorShift
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shift, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("shift_id = ?", id).
		Find(&shift.Readings).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OperatorShift{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.OperatorShift{}, "id = ?", id).Error
}

func (r *repository) CreateReadings(ctx context.Context, readings []models.NozzleReading) error {
	if len(readings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&readings).Error
}

func (r *repository) UpdateReading(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.NozzleReading{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// PreviousClose is the CLOSE of the latest completed shift on nozzleID that
// started before the given instant.
func (r *repository) PreviousClose(ctx context.Context, nozzleID uuid.UUID, before time.Time, excludeShiftID uuid.UUID) (*ChainReading, error) {
	return r.chain(ctx, nozzleID, enums.ReadingClose, "s.started_at < ?", before, excludeShiftID, "s.started_at DESC")
}

// NextOpen is the OPEN of the earliest completed shift on nozzleID that
// started after the given instant.
func (r *repository) NextOpen(ctx context.Context, nozzleID uuid.UUID, after time.Time, excludeShiftID uuid.UUID) (*ChainReading, error) {
	return r.chain(ctx, nozzleID, enums.ReadingOpen, "s.started_at > ?", after, excludeShiftID, "s.started_at ASC")
}

func (r *repository) chain(ctx context.Context, nozzleID uuid.UUID, readingType enums.ReadingType, cond string, at time.Time, excludeShiftID uuid.UUID, order string) (*ChainReading, error) {
	var rows []ChainReading
	err := r.db.WithContext(ctx).
		Table("nozzle_readings AS nr").
		Select("nr.shift_id AS shift_id, nr.totalizer AS totalizer").
		Joins("JOIN operator_shifts s ON s.id = nr.shift_id").
		Where("nr.nozzle_id = ? AND nr.type = ? AND s.status = ? AND s.id <> ?", nozzleID, readingType, enums.ShiftCompleted, excludeShiftID).
		Where(cond, at).
		Order(order).
		Limit(1).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// DepositStatus is the status of the shift's live deposit; rejected ones are skipped.
func (r *repository) DepositStatus(ctx context.Context, shiftID uuid.UUID) (*enums.ApprovalStatus, error) {
	var statuses []enums.ApprovalStatus
	err := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("shift_id = ? AND status <> ?", shiftID, enums.ApprovalRejected).
		Limit(1).
		Pluck("status", &statuses).Error
	if err != nil || len(statuses) == 0 {
		return nil, err
	}
	return &statuses[0], nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.OperatorShift, error) {
	query := r.db.WithContext(ctx).
		Model(&models.OperatorShift{}).
		Where("gas_station_id = ?", filter.GasStationID)
	if filter.StationID != nil {
		query = query.Where("station_id = ?", *filter.StationID)
	}
	if filter.OperatorID != nil {
		query = query.Where("operator_id = ?", *filter.OperatorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ShiftDate != "" {
		query = query.Where("shift_date = ?", filter.ShiftDate)
	}
	var rows []models.OperatorShift
	err := query.
		Scopes(pagination.Keyset(filter.Cursor, filter.Limit)).
		Find(&rows).Error
	return rows, err
}
