package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/config"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox/registry"
)

func depositEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventDepositApproved,
		AggregateType: enums.AggregateDeposit,
		AggregateID:   uuid.New(),
		GasStationID:  uuid.New(),
		Payload:       mustEnvelopePayload(t, uuid.NewString()),
		AttemptCount:  attempts,
	}
}

func decidedResolution() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "notification-topic"},
		Payload:    &payloads.ApprovalDecidedEvent{},
	}
}

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	first := depositEvent(t, 0)
	second := depositEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: decidedResolution()}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second row marked published, got %v", repo.published)
	}
}

func TestProcessBatchDeadLetters(t *testing.T) {
	cases := []struct {
		name     string
		attempts int
		registry *fakeRegistry
		results  []publishResult
		reason   enums.OutboxDLQErrorReason
	}{
		{
			name:     "undecodable row",
			registry: &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))},
			reason:   enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "publisher refuses permanently",
			registry: &fakeRegistry{resolved: decidedResolution()},
			results:  []publishResult{fakePublishResult{err: registry.NewNonRetryableError(errors.New("topic deleted"))}},
			reason:   enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "attempts exhausted",
			attempts: 1,
			registry: &fakeRegistry{resolved: decidedResolution()},
			results:  []publishResult{fakePublishResult{err: errors.New("transient")}},
			reason:   enums.OutboxDLQReasonMaxAttempts,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := depositEvent(t, tc.attempts)
			repo := &fakeRepo{events: []models.OutboxEvent{event}}
			dlq := &fakeDLQRepo{}
			service := newTestService(t, repo, &fakePublisher{results: tc.results}, tc.registry, dlq, &config.OutboxConfig{
				BatchSize:      1,
				PollIntervalMS: 100,
				MaxAttempts:    2,
			})

			if _, err := service.processBatch(context.Background()); err != nil {
				t.Fatalf("process batch returned error: %v", err)
			}
			if len(dlq.entries) != 1 {
				t.Fatalf("expected one dlq entry, got %d", len(dlq.entries))
			}
			entry := dlq.entries[0]
			if entry.EventID != event.ID {
				t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
			}
			if !bytes.Equal(entry.Payload, event.Payload) {
				t.Fatalf("dlq payload mismatch")
			}
			if entry.GasStationID != event.GasStationID {
				t.Fatalf("dlq gas_station_id mismatch: %s", entry.GasStationID)
			}
			if entry.ErrorReason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, entry.ErrorReason)
			}
			if len(repo.terminal) != 1 || repo.terminal[0] != 2 {
				t.Fatalf("expected row parked at max attempts, got %v", repo.terminal)
			}
			if len(repo.published) != 0 {
				t.Fatalf("dead-lettered row must not be marked published")
			}
		})
	}
}

func TestProcessBatchAbortsWhenDLQInsertFails(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{depositEvent(t, 0)}}
	dlq := &fakeDLQRepo{err: errors.New("disk full")}
	service := newTestService(t, repo, &fakePublisher{}, &fakeRegistry{err: errors.New("bad row")}, dlq, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatalf("expected bookkeeping error to abort the batch")
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("row must not be parked without a dlq entry")
	}
}

func TestPublishCarriesRoutingAttributes(t *testing.T) {
	event := depositEvent(t, 0)
	event.EventType = enums.EventTankLossDetected
	event.AggregateType = enums.AggregateTankReading
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "notification-topic"},
		Payload:    &payloads.TankLossDetectedEvent{},
	}
	observer := &fakeObserver{}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, nil)
	service.metrics = observer

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	attrs := pub.sent[0].Attributes
	if attrs["gas_station_id"] != event.GasStationID.String() {
		t.Fatalf("unexpected gas_station_id attribute %q", attrs["gas_station_id"])
	}
	if attrs["event_type"] != string(enums.EventTankLossDetected) {
		t.Fatalf("unexpected event_type attribute %q", attrs["event_type"])
	}
	if attrs["event_id"] != event.ID.String() {
		t.Fatalf("unexpected event_id attribute %q", attrs["event_id"])
	}
	if len(observer.results) != 1 || observer.results[0] != "ok" {
		t.Fatalf("unexpected observed results %v", observer.results)
	}
}

func TestEmptyBatchObservedAsIdle(t *testing.T) {
	observer := &fakeObserver{}
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	service.metrics = observer

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected empty batch to report idle")
	}
	if len(observer.results) != 1 || observer.results[0] != "idle" {
		t.Fatalf("unexpected observed results %v", observer.results)
	}
}

func TestNextBackoffCapsAtCeiling(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("expected 1s from zero, got %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected ceiling %s, got %s", maxBackoff, got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, resolver registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	service, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.Nop(),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         resolver,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []int
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, _ uuid.UUID, _ error, terminalAttempts int) error {
	f.terminal = append(f.terminal, terminalAttempts)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error { return nil }

func (f *fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope = outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()}
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
	err     error
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeObserver struct {
	results []string
}

func (f *fakeObserver) ObservePublish(result string, _ time.Duration) {
	f.results = append(f.results, result)
}
