package unloads

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, unload *models.Unload) error
	Find(ctx context.Context, id uuid.UUID) (*models.Unload, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Unload, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]models.Unload, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	LiveForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.Unload, error)
}

// ListFilter narrows unload listings.
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

func (r *repository) Create(ctx context.Context, unload *models.Unload) error {
	return r.db.WithContext(ctx).Create(unload).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Unload, error) {
	var unload models.Unload
	if err := r.db.WithContext(ctx).First(&unload, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &unload, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.Unload, error) {
	var unload models.Unload
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&unload, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &unload, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Unload{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Unload, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Unload{}).
		Where("gas_station_id = ?", filter.GasStationID)
	if filter.TankID != nil {
		query = query.Where("tank_id = ?", *filter.TankID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var rows []models.Unload
	err := query.
		Scopes(pagination.Keyset(filter.Cursor, filter.Limit)).
		Find(&rows).Error
	return rows, err
}

func (r *repository) LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// LiveForPurchase lists the unloads linked to a purchase that were not rejected.
func (r *repository) LiveForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.Unload, error) {
	var rows []models.Unload
	err := r.db.WithContext(ctx).
		Where("purchase_transaction_id = ? AND status <> ?", purchaseID, enums.ApprovalRejected).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
