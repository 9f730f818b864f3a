package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Station is a dispensing island; operators check in to one at a time.
type Station struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID uuid.UUID       `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	Code         string          `gorm:"column:code;not null" json:"code"`
	Name         string          `gorm:"column:name;not null" json:"name"`
	Lifecycle    enums.Lifecycle `gorm:"column:lifecycle;type:text;not null;default:ACTIVE" json:"lifecycle"`
	Nozzles      []Nozzle        `gorm:"foreignKey:StationID" json:"nozzles"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (s *Station) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Nozzle draws from one tank and reports a cumulative totalizer.
type Nozzle struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StationID uuid.UUID       `gorm:"column:station_id;type:uuid;not null;index" json:"station_id"`
	TankID    uuid.UUID       `gorm:"column:tank_id;type:uuid;not null;index" json:"tank_id"`
	Code      string          `gorm:"column:code;not null" json:"code"`
	Lifecycle enums.Lifecycle `gorm:"column:lifecycle;type:text;not null;default:ACTIVE" json:"lifecycle"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (n *Nozzle) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
