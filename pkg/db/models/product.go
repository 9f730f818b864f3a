package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Product is a fuel grade sold by a gas station. Prices are per liter.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID  uuid.UUID       `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	Name          string          `gorm:"column:name;not null" json:"name"`
	PurchasePrice decimal.Decimal `gorm:"column:purchase_price;type:numeric(18,2);not null" json:"purchase_price"`
	SellingPrice  decimal.Decimal `gorm:"column:selling_price;type:numeric(18,2);not null" json:"selling_price"`
	Lifecycle     enums.Lifecycle `gorm:"column:lifecycle;type:text;not null;default:ACTIVE" json:"lifecycle"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
