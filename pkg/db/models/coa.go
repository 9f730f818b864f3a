package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// COA is a chart-of-accounts entry scoped to one gas station.
type COA struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID uuid.UUID         `gorm:"column:gas_station_id;type:uuid;not null;uniqueIndex:ux_coa_station_name" json:"gas_station_id"`
	Name         string            `gorm:"column:name;not null;uniqueIndex:ux_coa_station_name" json:"name"`
	Category     enums.COACategory `gorm:"column:category;type:text;not null" json:"category"`
	Status       enums.Lifecycle   `gorm:"column:status;type:text;not null;default:ACTIVE" json:"status"`
	System       bool              `gorm:"column:system;not null;default:false" json:"system"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (COA) TableName() string { return "chart_of_accounts" }

func (c *COA) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
