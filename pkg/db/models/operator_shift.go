package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// OperatorShift is one operator's occupancy of a station for one slot of a day.
type OperatorShift struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GasStationID uuid.UUID         `gorm:"column:gas_station_id;type:uuid;not null;index" json:"gas_station_id"`
	StationID    uuid.UUID         `gorm:"column:station_id;type:uuid;not null;uniqueIndex:ux_operator_shifts_station_day_slot;uniqueIndex:ux_operator_shifts_station_active,where:status = 'STARTED'" json:"station_id"`
	OperatorID   uuid.UUID         `gorm:"column:operator_id;type:uuid;not null;uniqueIndex:ux_operator_shifts_operator_active,where:status = 'STARTED'" json:"operator_id"`
	ShiftDate    string            `gorm:"column:shift_date;type:text;not null;uniqueIndex:ux_operator_shifts_station_day_slot" json:"shift_date"`
	Slot         enums.ShiftSlot   `gorm:"column:slot;type:text;not null;uniqueIndex:ux_operator_shifts_station_day_slot" json:"slot"`
	Status       enums.ShiftStatus `gorm:"column:status;type:text;not null" json:"status"`
	StartedAt    time.Time         `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt      *time.Time        `gorm:"column:ended_at" json:"ended_at,omitempty"`
	Readings     []NozzleReading   `gorm:"foreignKey:ShiftID;constraint:OnDelete:CASCADE" json:"readings"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (s *OperatorShift) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// NozzleReading is a totalizer value for one nozzle, OPEN or CLOSE, within a shift.
type NozzleReading struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ShiftID   uuid.UUID         `gorm:"column:shift_id;type:uuid;not null;uniqueIndex:ux_nozzle_readings_shift_nozzle_type" json:"shift_id"`
	NozzleID  uuid.UUID         `gorm:"column:nozzle_id;type:uuid;not null;uniqueIndex:ux_nozzle_readings_shift_nozzle_type" json:"nozzle_id"`
	Type      enums.ReadingType `gorm:"column:type;type:text;not null;uniqueIndex:ux_nozzle_readings_shift_nozzle_type" json:"type"`
	Totalizer decimal.Decimal   `gorm:"column:totalizer;type:numeric(18,3);not null" json:"totalizer"`
	PumpTest  decimal.Decimal   `gorm:"column:pump_test;type:numeric(18,3);not null" json:"pump_test"`
	CreatedBy uuid.UUID         `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (r *NozzleReading) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
