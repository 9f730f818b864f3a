package reconciliation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

type Repository interface {
	FindGasStation(ctx context.Context, id uuid.UUID) (*models.GasStation, error)
	LiveReading(ctx context.Context, tankID uuid.UUID, operationalDate string) (*models.TankReading, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindGasStation(ctx context.Context, id uuid.UUID) (*models.GasStation, error) {
	var gs models.GasStation
	if err := r.db.WithContext(ctx).First(&gs, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &gs, nil
}

// LiveReading is the tank's non-rejected dip reading for the day, or nil.
func (r *repository) LiveReading(ctx context.Context, tankID uuid.UUID, operationalDate string) (*models.TankReading, error) {
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
