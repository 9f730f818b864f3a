package deposits

import (
	"context"

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
	LockShift(ctx context.Context, id uuid.UUID) (*models.OperatorShift, error)
	FindCOAs(ctx context.Context, ids []uuid.UUID) ([]models.COA, error)
	Create(ctx context.Context, deposit *models.Deposit) error
	FindLiveForShift(ctx context.Context, shiftID uuid.UUID) (*models.Deposit, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Deposit, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Deposit, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ShiftSales(ctx context.Context, shiftID uuid.UUID) ([]SaleRow, error)
	List(ctx context.Context, filter ListFilter) ([]models.Deposit, error)
}

// SaleRow is a nozzle reading of a shift joined to the product it dispensed.
type SaleRow struct {
	NozzleID      uuid.UUID         `gorm:"column:nozzle_id"`
	Type          enums.ReadingType `gorm:"column:type"`
	Totalizer     decimal.Decimal   `gorm:"column:totalizer"`
	PumpTest      decimal.Decimal   `gorm:"column:pump_test"`
	ProductID     uuid.UUID         `gorm:"column:product_id"`
	ProductName   string            `gorm:"column:product_name"`
	SellingPrice  decimal.Decimal   `gorm:"column:selling_price"`
	PurchasePrice decimal.Decimal   `gorm:"column:purchase_price"`
}

// ListFilter narrows deposit listings.
type ListFilter struct {
	GasStationID uuid.UUID
	ShiftID      *uuid.UUID
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

// LockShift holds the shift so its readings cannot be edited while a deposit
// settles against them.
func (r *repository) LockShift(ctx context.Context, id uuid.UUID) (*models.OperatorShift, error) {
	var shift models.OperatorShift
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shift, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *repository) FindCOAs(ctx context.Context, ids []uuid.UUID) ([]models.COA, error) {
	var accounts []models.COA
	if len(ids) == 0 {
		return accounts, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error
	return accounts, err
}

func (r *repository) Create(ctx context.Context, deposit *models.Deposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

// FindLiveForShift returns the shift's pending or approved deposit, nil when
// every deposit so far was rejected.
func (r *repository) FindLiveForShift(ctx context.Context, shiftID uuid.UUID) (*models.Deposit, error) {
	var deposits []models.Deposit
	if err := r.db.WithContext(ctx).
		Where("shift_id = ? AND status <> ?", shiftID, enums.ApprovalRejected).
		Limit(1).
		Find(&deposits).Error; err != nil {
		return nil, err
	}
	if len(deposits) == 0 {
		return nil, nil
	}
	return &deposits[0], nil
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	var deposit models.Deposit
	if err := r.db.WithContext(ctx).Preload("Details").First(&deposit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &deposit, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	var deposit models.Deposit
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&deposit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("deposit_id = ?", id).
		Find(&deposit.Details).Error; err != nil {
		return nil, err
	}
	return &deposit, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ShiftSales(ctx context.Context, shiftID uuid.UUID) ([]SaleRow, error) {
	var rows []SaleRow
	err := r.db.WithContext(ctx).
		Table("nozzle_readings AS nr").
		Select("nr.nozzle_id AS nozzle_id, nr.type AS type, nr.totalizer AS totalizer, nr.pump_test AS pump_test, "+
			"p.id AS product_id, p.name AS product_name, p.selling_price AS selling_price, p.purchase_price AS purchase_price").
		Joins("JOIN nozzles n ON n.id = nr.nozzle_id").
		Joins("JOIN tanks t ON t.id = n.tank_id").
		Joins("JOIN products p ON p.id = t.product_id").
		Where("nr.shift_id = ?", shiftID).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Deposit, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Preload("Details").
		Where("gas_station_id = ?", filter.GasStationID)
	if filter.ShiftID != nil {
		query = query.Where("shift_id = ?", *filter.ShiftID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var rows []models.Deposit
	err := query.
		Scopes(pagination.Keyset(filter.Cursor, filter.Limit)).
		Find(&rows).Error
	return rows, err
}
