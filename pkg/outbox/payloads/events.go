package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// ApprovalDecidedEvent is emitted when any approvable record leaves PENDING.
type ApprovalDecidedEvent struct {
	RecordID      uuid.UUID            `json:"record_id"`
	GasStationID  uuid.UUID            `json:"gas_station_id"`
	Status        enums.ApprovalStatus `json:"status"`
	DecidedBy     uuid.UUID            `json:"decided_by"`
	CreatedBy     uuid.UUID            `json:"created_by"`
	TransactionID *uuid.UUID           `json:"transaction_id,omitempty"`
	Reason        string               `json:"reason,omitempty"`
}

// TankLossDetectedEvent flags a dip reading below the calculated stock.
type TankLossDetectedEvent struct {
	TankReadingID uuid.UUID       `json:"tank_reading_id"`
	TankID        uuid.UUID       `json:"tank_id"`
	GasStationID  uuid.UUID       `json:"gas_station_id"`
	LiterValue    decimal.Decimal `json:"liter_value"`
	StockRealtime decimal.Decimal `json:"stock_realtime"`
	EstimatedLoss decimal.Decimal `json:"estimated_loss"`
}

// ShiftCompletedEvent is emitted on checkout.
type ShiftCompletedEvent struct {
	ShiftID      uuid.UUID       `json:"shift_id"`
	StationID    uuid.UUID       `json:"station_id"`
	GasStationID uuid.UUID       `json:"gas_station_id"`
	OperatorID   uuid.UUID       `json:"operator_id"`
	Slot         enums.ShiftSlot `json:"slot"`
	ShiftDate    string          `json:"shift_date"`
	EndedAt      time.Time       `json:"ended_at"`
	SoldLiters   decimal.Decimal `json:"sold_liters"`
}
