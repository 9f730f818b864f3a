package titipan

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
	CreateAccount(ctx context.Context, account *models.TitipanAccount) error
	FindAccount(ctx context.Context, id uuid.UUID) (*models.TitipanAccount, error)
	ListAccounts(ctx context.Context, gasStationID uuid.UUID) ([]models.TitipanAccount, error)
	CreateFill(ctx context.Context, fill *models.TitipanFill) error
	FindFill(ctx context.Context, id uuid.UUID) (*models.TitipanFill, error)
	LockFill(ctx context.Context, id uuid.UUID) (*models.TitipanFill, error)
	UpdateFill(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListFills(ctx context.Context, filter FillFilter) ([]models.TitipanFill, error)
}

// FillFilter narrows fill listings.
type FillFilter struct {
	GasStationID     uuid.UUID
	TitipanAccountID *uuid.UUID
	Status           *enums.ApprovalStatus
	Cursor           *pagination.Cursor
	Limit            int
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

func (r *repository) CreateAccount(ctx context.Context, account *models.TitipanAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindAccount(ctx context.Context, id uuid.UUID) (*models.TitipanAccount, error) {
	var account models.TitipanAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListAccounts(ctx context.Context, gasStationID uuid.UUID) ([]models.TitipanAccount, error) {
	var rows []models.TitipanAccount
	err := r.db.WithContext(ctx).
		Where("gas_station_id = ?", gasStationID).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateFill(ctx context.Context, fill *models.TitipanFill) error {
	return r.db.WithContext(ctx).Create(fill).Error
}

func (r *repository) FindFill(ctx context.Context, id uuid.UUID) (*models.TitipanFill, error) {
	var fill models.TitipanFill
	if err := r.db.WithContext(ctx).First(&fill, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fill, nil
}

func (r *repository) LockFill(ctx context.Context, id uuid.UUID) (*models.TitipanFill, error) {
	var fill models.TitipanFill
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&fill, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fill, nil
}

func (r *repository) UpdateFill(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.TitipanFill{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListFills(ctx context.Context, filter FillFilter) ([]models.TitipanFill, error) {
	query := r.db.WithContext(ctx).
		Model(&models.TitipanFill{}).
		Where("gas_station_id = ?", filter.GasStationID)
	if filter.TitipanAccountID != nil {
		query = query.Where("titipan_account_id = ?", *filter.TitipanAccountID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var rows []models.TitipanFill
	err := query.
		Scopes(pagination.Keyset(filter.Cursor, filter.Limit)).
		Find(&rows).Error
	return rows, err
}
