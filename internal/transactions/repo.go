package transactions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
)

// Repository loads the accounts and products an orchestrator posts against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCOA(ctx context.Context, id uuid.UUID) (*models.COA, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
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

func (r *repository) FindCOA(ctx context.Context, id uuid.UUID) (*models.COA, error) {
	var coa models.COA
	if err := r.db.WithContext(ctx).First(&coa, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coa, nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
