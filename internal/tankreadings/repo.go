package tankreadings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reading *models.TankReading) error
	Find(ctx context.Context, id uuid.UUID) (*models.TankReading, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.TankReading, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindLiveForDay(ctx context.Context, tankID uuid.UUID, operationalDate string) (*models.TankReading, error)
	List(ctx context.Context, filter ListFilter) ([]models.TankReading, error)
	FindGasStation(ctx context.Context, id uuid.UUID) (*models.GasStation, error)
}

// ListFilter narrows reading listings.
type ListFilter struct {
	GasStationID uuid.UUID
	TankID       *uuid.UUID
	Status       *enums.ApprovalStatus
	Cursor       *pagination.Cursor
	Limit        int
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reading *models.TankReading) error {
	return r.db.WithContext(ctx).Create(reading).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.TankReading, error) {
	var reading models.TankReading
	if err := r.db.WithContext(ctx).First(&reading, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.TankReading, error) {
	var reading models.TankReading
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reading, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.TankReading{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// FindLiveForDay returns the PENDING or APPROVED reading of the tank for the
// operational date, or nil.
func (r *repository) FindLiveForDay(ctx context.Context, tankID uuid.UUID, operationalDate string) (*models.TankReading, error) {
	var reading models.TankReading
	err := r.db.WithContext(ctx).
		Where("tank_id = ? AND operational_date = ? AND status <> ?", tankID, operationalDate, enums.ApprovalRejected).
		First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.TankReading, error) {
	query := r.db.WithContext(ctx).
		Model(&models.TankReading{}).
		Where("gas_station_id = ?", filter.GasStationID)
	if filter.TankID != nil {
		query = query.Where("tank_id = ?", *filter.TankID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var rows []models.TankReading
	err := query.
		Scopes(pagination.Keyset(filter.Cursor, filter.Limit)).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindGasStation(ctx context.Context, id uuid.UUID) (*models.GasStation, error) {
	var gs models.GasStation
	if err := r.db.WithContext(ctx).First(&gs, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &gs, nil
}
