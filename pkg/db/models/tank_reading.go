package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// TankReading is a physical dip measurement. StockOpen and StockRealtime are
// snapshots of the calculated stock taken when the reading was created; rows
// written before snapshots existed carry nil and are recomputed on read.
type TankReading struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID    uuid.UUID            `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	TankID          uuid.UUID            `gorm:"column:tank_id;type:uuid;not null;uniqueIndex:ux_tank_readings_tank_day_live,where:status <> 'REJECTED'" json:"tank_id"`
	LiterValue      decimal.Decimal      `gorm:"column:liter_value;type:numeric(18,3);not null" json:"liter_value"`
	ReadingAt       time.Time            `gorm:"column:reading_at;not null" json:"reading_at"`
	OperationalDate string               `gorm:"column:operational_date;type:text;not null;uniqueIndex:ux_tank_readings_tank_day_live" json:"operational_date"`
	StockOpen       *decimal.Decimal     `gorm:"column:stock_open;type:numeric(18,3)" json:"stock_open,omitempty"`
	StockRealtime   *decimal.Decimal     `gorm:"column:stock_realtime;type:numeric(18,3)" json:"stock_realtime,omitempty"`
	Status          enums.ApprovalStatus `gorm:"column:status;type:text;not null" json:"status"`
	CreatedBy       uuid.UUID            `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	ApprovedBy      *uuid.UUID           `gorm:"column:approved_by;type:uuid" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time           `gorm:"column:approved_at" json:"approved_at,omitempty"`
	TransactionID   *uuid.UUID           `gorm:"column:transaction_id;type:uuid" json:"transaction_id,omitempty"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (r *TankReading) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// HasSnapshot reports whether the stock snapshot was captured at creation.
func (r *TankReading) HasSnapshot() bool {
	return r.StockRealtime != nil && r.StockOpen != nil
}
