package masterdata

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Repository persists gas stations and their equipment.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, value any) error {
	return r.db.WithContext(ctx).Create(value).Error
}

func (r *Repository) FindGasStation(ctx context.Context, id uuid.UUID) (*models.GasStation, error) {
	var gs models.GasStation
	if err := r.db.WithContext(ctx).First(&gs, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &gs, nil
}

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) FindTank(ctx context.Context, id uuid.UUID) (*models.Tank, error) {
	var tank models.Tank
	if err := r.db.WithContext(ctx).First(&tank, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tank, nil
}

func (r *Repository) FindStation(ctx context.Context, id uuid.UUID) (*models.Station, error) {
	var station models.Station
	if err := r.db.WithContext(ctx).
		Preload("Nozzles", "lifecycle = ?", enums.LifecycleActive).
		First(&station, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &station, nil
}

func (r *Repository) FindNozzle(ctx context.Context, id uuid.UUID) (*models.Nozzle, error) {
	var nozzle models.Nozzle
	if err := r.db.WithContext(ctx).First(&nozzle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &nozzle, nil
}

func (r *Repository) ListProducts(ctx context.Context, gasStationID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("gas_station_id = ?", gasStationID).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]models.Tank, error) {
	var rows []models.Tank
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("gas_station_id = ?", gasStationID).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListStations(ctx context.Context, gasStationID uuid.UUID) ([]models.Station, error) {
	var rows []models.Station
	err := r.db.WithContext(ctx).
		Preload("Nozzles", "lifecycle = ?", enums.LifecycleActive).
		Where("gas_station_id = ?", gasStationID).
		Order("code ASC").
		Find(&rows).Error
	return rows, err
}

// SetLifecycle updates the lifecycle column of model's row id.
func (r *Repository) SetLifecycle(ctx context.Context, model any, id uuid.UUID, lifecycle enums.Lifecycle) error {
	return r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Update("lifecycle", lifecycle).Error
}

func (r *Repository) UpdateProductPrices(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(updates).Error
}
