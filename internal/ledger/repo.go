package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/pagination"
)

// Repository manages persistence for transactions, journal entries and accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ReplaceEntries(ctx context.Context, transactionID uuid.UUID, entries []models.JournalEntry) error
	ListTransactions(ctx context.Context, filter ListFilter) ([]models.Transaction, error)

	CreateCOA(ctx context.Context, coa *models.COA) error
	CreateCOAIfAbsent(ctx context.Context, coa *models.COA) error
	FindCOA(ctx context.Context, id uuid.UUID) (*models.COA, error)
	FindCOAByName(ctx context.Context, gasStationID uuid.UUID, name string) (*models.COA, error)
	FindCOAs(ctx context.Context, ids []uuid.UUID) ([]models.COA, error)
	ListCOA(ctx context.Context, gasStationID uuid.UUID, includeRetired bool) ([]models.COA, error)
	UpdateCOAStatus(ctx context.Context, id uuid.UUID, status enums.Lifecycle) error

	ApprovedEntriesForCOA(ctx context.Context, coaID uuid.UUID) ([]EntryAmounts, error)
	ApprovedEntriesByCategory(ctx context.Context, gasStationID uuid.UUID) ([]CategoryEntryAmounts, error)
}

// EntryAmounts is the debit/credit pair of one journal entry.
type EntryAmounts struct {
	Debit  decimal.Decimal `gorm:"column:debit"`
	Credit decimal.Decimal `gorm:"column:credit"`
}

// CategoryEntryAmounts tags an entry with its account.
type CategoryEntryAmounts struct {
	COAID    uuid.UUID         `gorm:"column:coa_id"`
	Name     string            `gorm:"column:name"`
	Category enums.COACategory `gorm:"column:category"`
	Debit    decimal.Decimal   `gorm:"column:debit"`
	Credit   decimal.Decimal   `gorm:"column:credit"`
}

// ListFilter narrows listTransactions.
type ListFilter struct {
	GasStationID uuid.UUID
	Type         *enums.TransactionType
	Status       *enums.ApprovalStatus
	From         *time.Time
	To           *time.Time
	Cursor       *pagination.Cursor
	Limit        int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Entries.COA").
		First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&txn.Entries).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ReplaceEntries(ctx context.Context, transactionID uuid.UUID, entries []models.JournalEntry) error {
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Delete(&models.JournalEntry{}).Error; err != nil {
		return err
	}
	for i := range entries {
		entries[i].TransactionID = transactionID
	}
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListTransactions(ctx context.Context, filter ListFilter) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("gas_station_id = ?", filter.GasStationID)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("date < ?", *filter.To)
	}
	var rows []models.Transaction
	if err := query.
		Preload("Entries").
		Scopes(pagination.Keyset(filter.Cursor, filter.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateCOA(ctx context.Context, coa *models.COA) error {
	return r.db.WithContext(ctx).Create(coa).Error
}

// CreateCOAIfAbsent inserts coa unless the station already has an account with
// that name. Callers re-read by name afterwards.
func (r *repository) CreateCOAIfAbsent(ctx context.Context, coa *models.COA) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gas_station_id"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(coa).Error
}

func (r *repository) FindCOA(ctx context.Context, id uuid.UUID) (*models.COA, error) {
	var coa models.COA
	if err := r.db.WithContext(ctx).First(&coa, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coa, nil
}

func (r *repository) FindCOAByName(ctx context.Context, gasStationID uuid.UUID, name string) (*models.COA, error) {
	var coa models.COA
	if err := r.db.WithContext(ctx).
		Where("gas_station_id = ? AND name = ?", gasStationID, name).
		First(&coa).Error; err != nil {
		return nil, err
	}
	return &coa, nil
}

func (r *repository) FindCOAs(ctx context.Context, ids []uuid.UUID) ([]models.COA, error) {
	var rows []models.COA
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListCOA(ctx context.Context, gasStationID uuid.UUID, includeRetired bool) ([]models.COA, error) {
	query := r.db.WithContext(ctx).Where("gas_station_id = ?", gasStationID)
	if !includeRetired {
		query = query.Where("status = ?", enums.LifecycleActive)
	}
	var rows []models.COA
	if err := query.Order("category ASC, name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateCOAStatus(ctx context.Context, id uuid.UUID, status enums.Lifecycle) error {
	return r.db.WithContext(ctx).
		Model(&models.COA{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) ApprovedEntriesForCOA(ctx context.Context, coaID uuid.UUID) ([]EntryAmounts, error) {
	var rows []EntryAmounts
	err := r.db.WithContext(ctx).
		Table("journal_entries AS je").
		Select("je.debit AS debit, je.credit AS credit").
		Joins("JOIN transactions t ON t.id = je.transaction_id").
		Where("je.coa_id = ? AND t.status = ?", coaID, enums.ApprovalApproved).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) ApprovedEntriesByCategory(ctx context.Context, gasStationID uuid.UUID) ([]CategoryEntryAmounts, error) {
	var rows []CategoryEntryAmounts
	err := r.db.WithContext(ctx).
		Table("journal_entries AS je").
		Select("c.id AS coa_id, c.name AS name, c.category AS category, je.debit AS debit, je.credit AS credit").
		Joins("JOIN transactions t ON t.id = je.transaction_id").
		Joins("JOIN chart_of_accounts c ON c.id = je.coa_id").
		Where("t.gas_station_id = ? AND t.status = ?", gasStationID, enums.ApprovalApproved).
		Scan(&rows).Error
	return rows, err
}
