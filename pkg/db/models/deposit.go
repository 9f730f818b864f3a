package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Deposit settles the cash of one completed shift.
type Deposit struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID   uuid.UUID            `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	ShiftID        uuid.UUID            `gorm:"column:shift_id;type:uuid;not null;uniqueIndex:ux_deposits_shift_live,where:status <> 'REJECTED'" json:"shift_id"`
	OperatorAmount decimal.Decimal      `gorm:"column:operator_amount;type:numeric(18,2);not null" json:"operator_amount"`
	AdminAmount    decimal.Decimal      `gorm:"column:admin_amount;type:numeric(18,2);not null" json:"admin_amount"`
	Notes          string               `gorm:"column:notes;not null;default:''" json:"notes"`
	Status         enums.ApprovalStatus `gorm:"column:status;type:text;not null" json:"status"`
	Details        []DepositDetail      `gorm:"foreignKey:DepositID;constraint:OnDelete:CASCADE" json:"details"`
	RevenueTxID    *uuid.UUID           `gorm:"column:revenue_transaction_id;type:uuid" json:"revenue_transaction_id,omitempty"`
	COGSTxID       *uuid.UUID           `gorm:"column:cogs_transaction_id;type:uuid" json:"cogs_transaction_id,omitempty"`
	CreatedBy      uuid.UUID            `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	ApprovedBy     *uuid.UUID           `gorm:"column:approved_by;type:uuid" json:"approved_by,omitempty"`
	ApprovedAt     *time.Time           `gorm:"column:approved_at" json:"approved_at,omitempty"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (d *Deposit) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// DepositDetail is the share of a deposit received through one payment method.
type DepositDetail struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DepositID     uuid.UUID           `gorm:"column:deposit_id;type:uuid;not null;index" json:"deposit_id"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	COAID         uuid.UUID           `gorm:"column:coa_id;type:uuid;not null" json:"coa_id"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(18,2);not null" json:"amount"`
}

func (d *DepositDetail) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
