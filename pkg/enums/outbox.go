package enums

import "fmt"

// OutboxAggregateType names the record an outbox event is about.
type OutboxAggregateType string

const (
	AggregateUnload      OutboxAggregateType = "unload"
	AggregateTitipanFill OutboxAggregateType = "titipan_fill"
	AggregateTankReading OutboxAggregateType = "tank_reading"
	AggregateShift       OutboxAggregateType = "operator_shift"
	AggregateDeposit     OutboxAggregateType = "deposit"
	AggregateTransaction OutboxAggregateType = "transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateUnload,
	AggregateTitipanFill,
	AggregateTankReading,
	AggregateShift,
	AggregateDeposit,
	AggregateTransaction,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the routing key of an outbox event.
type OutboxEventType string

const (
	EventUnloadApproved      OutboxEventType = "unload_approved"
	EventUnloadRejected      OutboxEventType = "unload_rejected"
	EventTitipanFillApproved OutboxEventType = "titipan_fill_approved"
	EventTitipanFillRejected OutboxEventType = "titipan_fill_rejected"
	EventTankReadingApproved OutboxEventType = "tank_reading_approved"
	EventTankReadingRejected OutboxEventType = "tank_reading_rejected"
	EventTankLossDetected    OutboxEventType = "tank_loss_detected"
	EventShiftCompleted      OutboxEventType = "shift_completed"
	EventDepositApproved     OutboxEventType = "deposit_approved"
	EventDepositRejected     OutboxEventType = "deposit_rejected"
	EventTransactionApproved OutboxEventType = "transaction_approved"
	EventTransactionRejected OutboxEventType = "transaction_rejected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventUnloadApproved,
	EventUnloadRejected,
	EventTitipanFillApproved,
	EventTitipanFillRejected,
	EventTankReadingApproved,
	EventTankReadingRejected,
	EventTankLossDetected,
	EventShiftCompleted,
	EventDepositApproved,
	EventDepositRejected,
	EventTransactionApproved,
	EventTransactionRejected,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
