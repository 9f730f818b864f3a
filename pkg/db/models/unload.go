package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Unload is a fuel delivery into a tank. It only counts toward stock once APPROVED.
type Unload struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID          uuid.UUID            `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	TankID                uuid.UUID            `gorm:"column:tank_id;type:uuid;not null;index" json:"tank_id"`
	Liters                decimal.Decimal      `gorm:"column:liters;type:numeric(18,3);not null" json:"liters"`
	InvoiceLiters         *decimal.Decimal     `gorm:"column:invoice_liters;type:numeric(18,3)" json:"invoice_liters,omitempty"`
	InvoiceRef            string               `gorm:"column:invoice_ref;not null;default:''" json:"invoice_ref"`
	PurchaseTransactionID *uuid.UUID           `gorm:"column:purchase_transaction_id;type:uuid;index" json:"purchase_transaction_id,omitempty"`
	UnloadedAt            time.Time            `gorm:"column:unloaded_at;not null" json:"unloaded_at"`
	Status                enums.ApprovalStatus `gorm:"column:status;type:text;not null" json:"status"`
	CreatedBy             uuid.UUID            `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	ApprovedBy            *uuid.UUID           `gorm:"column:approved_by;type:uuid" json:"approved_by,omitempty"`
	ApprovedAt            *time.Time           `gorm:"column:approved_at" json:"approved_at,omitempty"`
	TransactionID         *uuid.UUID           `gorm:"column:transaction_id;type:uuid" json:"transaction_id,omitempty"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (u *Unload) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
