package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// TitipanAccount names a third party whose fuel is held in the station's tanks.
type TitipanAccount struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID uuid.UUID       `gorm:"column:gas_station_id;type:uuid;not null;uniqueIndex:ux_titipan_accounts_station_name" json:"gas_station_id"`
	Name         string          `gorm:"column:name;not null;uniqueIndex:ux_titipan_accounts_station_name" json:"name"`
	COAID        uuid.UUID       `gorm:"column:coa_id;type:uuid;not null" json:"coa_id"`
	Lifecycle    enums.Lifecycle `gorm:"column:lifecycle;type:text;not null;default:ACTIVE" json:"lifecycle"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (a *TitipanAccount) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// TitipanFill deposits consignment fuel into a tank.
type TitipanFill struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID     uuid.UUID            `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	TankID           uuid.UUID            `gorm:"column:tank_id;type:uuid;not null;index" json:"tank_id"`
	TitipanAccountID uuid.UUID            `gorm:"column:titipan_account_id;type:uuid;not null" json:"titipan_account_id"`
	Liters           decimal.Decimal      `gorm:"column:liters;type:numeric(18,3);not null" json:"liters"`
	FilledAt         time.Time            `gorm:"column:filled_at;not null" json:"filled_at"`
	Status           enums.ApprovalStatus `gorm:"column:status;type:text;not null" json:"status"`
	CreatedBy        uuid.UUID            `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	ApprovedBy       *uuid.UUID           `gorm:"column:approved_by;type:uuid" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time           `gorm:"column:approved_at" json:"approved_at,omitempty"`
	TransactionID    *uuid.UUID           `gorm:"column:transaction_id;type:uuid" json:"transaction_id,omitempty"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (f *TitipanFill) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
