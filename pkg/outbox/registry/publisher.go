package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/fuelstation-backend/pkg/config"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// IsNonRetryable reports whether err carries a NonRetryableError.
func IsNonRetryable(err error) bool {
	var nre NonRetryableError
	return errors.As(err, &nre)
}

// NewEventRegistry routes approval, rejection and shift events to the
// notification topic and tank loss alerts to the alert topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	topic := cfg.NotificationTopic
	alertTopic := cfg.AlertTopicOrDefault()
	decided := func() any { return &payloads.ApprovalDecidedEvent{} }

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{EventType: enums.EventUnloadApproved, AggregateType: enums.AggregateUnload, PayloadFactory: decided},
		{EventType: enums.EventUnloadRejected, AggregateType: enums.AggregateUnload, PayloadFactory: decided},
		{EventType: enums.EventTitipanFillApproved, AggregateType: enums.AggregateTitipanFill, PayloadFactory: decided},
		{EventType: enums.EventTitipanFillRejected, AggregateType: enums.AggregateTitipanFill, PayloadFactory: decided},
		{EventType: enums.EventTankReadingApproved, AggregateType: enums.AggregateTankReading, PayloadFactory: decided},
		{EventType: enums.EventTankReadingRejected, AggregateType: enums.AggregateTankReading, PayloadFactory: decided},
		{EventType: enums.EventDepositApproved, AggregateType: enums.AggregateDeposit, PayloadFactory: decided},
		{EventType: enums.EventDepositRejected, AggregateType: enums.AggregateDeposit, PayloadFactory: decided},
		{EventType: enums.EventTransactionApproved, AggregateType: enums.AggregateTransaction, PayloadFactory: decided},
		{EventType: enums.EventTransactionRejected, AggregateType: enums.AggregateTransaction, PayloadFactory: decided},
		{
			EventType:      enums.EventTankLossDetected,
			AggregateType:  enums.AggregateTankReading,
			Topic:          alertTopic,
			PayloadFactory: func() any { return &payloads.TankLossDetectedEvent{} },
		},
		{
			EventType:      enums.EventShiftCompleted,
			AggregateType:  enums.AggregateShift,
			PayloadFactory: func() any { return &payloads.ShiftCompletedEvent{} },
		},
	} {
		if desc.Topic == "" {
			desc.Topic = topic
		}
		reg.register(desc)
	}
	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Topics returns the distinct topics the registry publishes to, sorted.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	for _, desc := range r.entries {
		seen[desc.Topic] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Descriptor returns the registered descriptor for an event type.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
