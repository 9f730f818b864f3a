package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Transaction is a ledger header owning its journal entries. Liters is the
// fuel bought and is only set on PURCHASE transactions.
type Transaction struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID  uuid.UUID               `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	Date          time.Time               `gorm:"column:date;not null" json:"date"`
	Type          enums.TransactionType   `gorm:"column:type;type:text;not null" json:"type"`
	Status        enums.ApprovalStatus    `gorm:"column:status;type:text;not null" json:"status"`
	Origin        enums.TransactionOrigin `gorm:"column:origin;type:text;not null" json:"origin"`
	Description   string                  `gorm:"column:description;not null;default:''" json:"description"`
	ReferenceType *string                 `gorm:"column:reference_type" json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID              `gorm:"column:reference_id;type:uuid" json:"reference_id,omitempty"`
	Liters        *decimal.Decimal        `gorm:"column:liters;type:numeric(18,3)" json:"liters,omitempty"`
	CreatedBy     uuid.UUID               `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	ApprovedBy    *uuid.UUID              `gorm:"column:approved_by;type:uuid" json:"approved_by,omitempty"`
	ApprovedAt    *time.Time              `gorm:"column:approved_at" json:"approved_at,omitempty"`
	Entries       []JournalEntry          `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"entries"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// JournalEntry is one side of a posting. Exactly one of Debit/Credit is positive.
type JournalEntry struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;index" json:"transaction_id"`
	COAID         uuid.UUID       `gorm:"column:coa_id;type:uuid;not null;index" json:"coa_id"`
	COA           *COA            `gorm:"foreignKey:COAID" json:"coa,omitempty"`
	Debit         decimal.Decimal `gorm:"column:debit;type:numeric(18,2);not null" json:"debit"`
	Credit        decimal.Decimal `gorm:"column:credit;type:numeric(18,2);not null" json:"credit"`
	Description   string          `gorm:"column:description;not null;default:''" json:"description"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (e *JournalEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
