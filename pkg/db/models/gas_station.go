package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// GasStation is the tenant boundary: every account, tank and shift belongs to one.
type GasStation struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string          `gorm:"column:name;not null" json:"name"`
	Timezone  string          `gorm:"column:timezone;not null" json:"timezone"`
	OpenTime  string          `gorm:"column:open_time;not null" json:"open_time"`
	CloseTime string          `gorm:"column:close_time;not null" json:"close_time"`
	Lifecycle enums.Lifecycle `gorm:"column:lifecycle;type:text;not null;default:ACTIVE" json:"lifecycle"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (g *GasStation) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}
