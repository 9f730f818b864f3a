package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Tank stores one product. Current stock is derived, never stored.
type Tank struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID uuid.UUID       `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Product      *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Name         string          `gorm:"column:name;not null" json:"name"`
	Capacity     decimal.Decimal `gorm:"column:capacity;type:numeric(18,3);not null" json:"capacity"`
	InitialStock decimal.Decimal `gorm:"column:initial_stock;type:numeric(18,3);not null" json:"initial_stock"`
	Lifecycle    enums.Lifecycle `gorm:"column:lifecycle;type:text;not null;default:ACTIVE" json:"lifecycle"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (t *Tank) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
