// Package tankreadings records physical dip readings. A reading snapshots the
// calculated stock when it is taken; approving it books the variance against
// that snapshot and makes the measured liters the tank's new stock anchor.
package tankreadings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/approval"
	"github.com/angelmondragon/fuelstation-backend/internal/inventory"
	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/internal/masterdata"
	"github.com/angelmondragon/fuelstation-backend/internal/tankstock"
	"github.com/angelmondragon/fuelstation-backend/pkg/db"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/metrics"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fuelstation-backend/pkg/pagination"
)

// ReferenceTankReading tags variance postings.
const ReferenceTankReading = "tank_reading"

type Service interface {
	Create(ctx context.Context, grant access.Grant, input CreateInput) (*Reading, error)
	Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*Reading, error)
	Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*Reading, error)
	Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*Reading, error)
	List(ctx context.Context, grant access.Grant, input ListInput) (*List, error)
}

type CreateInput struct {
	TankID     uuid.UUID
	LiterValue decimal.Decimal
	ReadingAt  time.Time
}

type ListInput struct {
	GasStationID uuid.UUID
	TankID       *uuid.UUID
	Status       *enums.ApprovalStatus
	Params       pagination.Params
}

// Reading is a tank reading with its variance against the stock snapshot.
type Reading struct {
	models.TankReading
	Variance      *decimal.Decimal `json:"variance"`
	EstimatedLoss *decimal.Decimal `json:"estimated_loss"`
	Loss          bool             `json:"loss"`
}

type List struct {
	Items      []Reading `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Evaluate derives variance and loss from the reading's snapshot.
func Evaluate(reading models.TankReading) Reading {
	out := Reading{TankReading: reading}
	if reading.StockRealtime == nil {
		return out
	}
	value := reading.LiterValue
	out.Variance = tankstock.Variance(&value, *reading.StockRealtime)
	out.EstimatedLoss = tankstock.EstimatedLoss(out.Variance)
	out.Loss = out.EstimatedLoss != nil
	return out
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Service
	poster    ledger.Poster
	outbox    outbox.Emitter
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
}

func NewService(repo Repository, tx txRunner, inv inventory.Service, poster ledger.Poster, emitter outbox.Emitter, logg *logger.Logger, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tank readings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if poster == nil {
		return nil, fmt.Errorf("ledger poster required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, inventory: inv, poster: poster, outbox: emitter, logg: logg, metrics: m}, nil
}

func readingError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "tank reading not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tank reading")
}

func (s *service) hours(ctx context.Context, repo Repository, gasStationID uuid.UUID) (tankstock.Hours, error) {
	gs, err := repo.FindGasStation(ctx, gasStationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tankstock.Hours{}, pkgerrors.New(pkgerrors.CodeNotFound, "gas station not found")
		}
		return tankstock.Hours{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gas station")
	}
	return masterdata.Hours(gs)
}

// snapshot computes stockOpen (stock when the operational day began) and
// stockRealtime (stock at the reading instant).
func (s *service) snapshot(ctx context.Context, tx *gorm.DB, tank *models.Tank, hours tankstock.Hours, reading *models.TankReading) (decimal.Decimal, decimal.Decimal, error) {
	dayStart, err := hours.DayStart(reading.OperationalDate)
	if err != nil {
		return decimal.Zero, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "operational day start")
	}
	exclude := &reading.ID
	if reading.ID == uuid.Nil {
		exclude = nil
	}
	open, err := s.inventory.Stock(ctx, tx, tank, dayStart, exclude)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	realtime, err := s.inventory.Stock(ctx, tx, tank, reading.ReadingAt, exclude)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return open, realtime, nil
}

func (s *service) Create(ctx context.Context, grant access.Grant, input CreateInput) (*Reading, error) {
	if input.LiterValue.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "liter value must not be negative")
	}
	readingAt := input.ReadingAt
	if readingAt.IsZero() {
		readingAt = db.NowUTC()
	}

	var created *models.TankReading
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tank, err := s.inventory.LockTank(ctx, tx, input.TankID)
		if err != nil {
			return err
		}
		if err := grant.Require(access.CapTankReadingCreate, tank.GasStationID); err != nil {
			return err
		}
		if tank.Lifecycle != enums.LifecycleActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "tank is retired")
		}
		if input.LiterValue.GreaterThan(tank.Capacity) {
			return pkgerrors.New(pkgerrors.CodeValidation, "liter value exceeds tank capacity").
				WithDetails(map[string]any{"capacity": tank.Capacity, "liter_value": input.LiterValue})
		}

		repo := s.repo.WithTx(tx)
		hours, err := s.hours(ctx, repo, tank.GasStationID)
		if err != nil {
			return err
		}
		reading := &models.TankReading{
			GasStationID:    tank.GasStationID,
			TankID:          tank.ID,
			LiterValue:      input.LiterValue,
			ReadingAt:       readingAt.UTC(),
			OperationalDate: hours.OperationalDate(readingAt),
			Status:          enums.ApprovalPending,
			CreatedBy:       grant.UserID(),
		}
		existing, err := repo.FindLiveForDay(ctx, tank.ID, reading.OperationalDate)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tank readings")
		}
		if existing != nil {
			return duplicateError(reading, existing.ID, existing.Status)
		}

		if err := s.ensureNoRunningShift(ctx, tx, reading); err != nil {
			return err
		}
		open, realtime, err := s.snapshot(ctx, tx, tank, hours, reading)
		if err != nil {
			return err
		}
		reading.StockOpen = &open
		reading.StockRealtime = &realtime
		if err := repo.Create(ctx, reading); err != nil {
			if db.IsUniqueViolation(err, "") {
				return duplicateError(reading, uuid.Nil, "")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tank reading")
		}
		created = reading
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := Evaluate(*created)
	return &out, nil
}

// ensureNoRunningShift refuses a dip taken while a shift drawing from the tank
// was dispensing: that shift's sales only count once it ends, so the dip would
// be measured against stock that still includes fuel already sold.
func (s *service) ensureNoRunningShift(ctx context.Context, tx *gorm.DB, reading *models.TankReading) error {
	running, err := s.inventory.ShiftsSpanning(ctx, tx, reading.TankID, reading.ReadingAt)
	if err != nil {
		return err
	}
	if len(running) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "a shift drawing from this tank was running at the reading time; take the reading between shifts").
		WithDetails(map[string]any{
			"tank_id":    reading.TankID,
			"reading_at": reading.ReadingAt,
			"shift_ids":  running,
		})
}

func duplicateError(reading *models.TankReading, existingID uuid.UUID, existingStatus enums.ApprovalStatus) error {
	details := map[string]any{
		"tank_id":          reading.TankID,
		"operational_date": reading.OperationalDate,
	}
	if existingID != uuid.Nil {
		details["existing_id"] = existingID
		details["existing_status"] = existingStatus
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "tank already has a reading for "+reading.OperationalDate).WithDetails(details)
}

func (s *service) Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*Reading, error) {
	return s.decide(ctx, grant, id, enums.ApprovalApproved, "")
}

func (s *service) Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*Reading, error) {
	return s.decide(ctx, grant, id, enums.ApprovalRejected, reason)
}

func (s *service) decide(ctx context.Context, grant access.Grant, id uuid.UUID, target enums.ApprovalStatus, reason string) (*Reading, error) {
	var result *models.TankReading
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reading, err := repo.Lock(ctx, id)
		if err != nil {
			return readingError(err)
		}
		if err := grant.Require(access.CapTankReadingApprove, reading.GasStationID); err != nil {
			return err
		}
		decision, err := approval.Decide(approval.RecordTankReading, reading.ID, reading.Status, target, grant.UserID(), db.NowUTC())
		if err != nil {
			return err
		}
		updates := decision.Updates()

		if decision.Approved() {
			tank, err := s.inventory.LockTank(ctx, tx, reading.TankID)
			if err != nil {
				return err
			}
			if err := s.ensureNoRunningShift(ctx, tx, reading); err != nil {
				return err
			}
			if !reading.HasSnapshot() {
				hours, err := s.hours(ctx, repo, reading.GasStationID)
				if err != nil {
					return err
				}
				open, realtime, err := s.snapshot(ctx, tx, tank, hours, reading)
				if err != nil {
					return err
				}
				reading.StockOpen, reading.StockRealtime = &open, &realtime
				updates["stock_open"] = open
				updates["stock_realtime"] = realtime
			}
			posted, err := s.postVariance(ctx, tx, grant, reading, tank)
			if err != nil {
				return err
			}
			if posted != nil {
				updates["transaction_id"] = posted.ID
				reading.TransactionID = &posted.ID
			}
		}

		if err := repo.Update(ctx, reading.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tank reading status")
		}
		event := outbox.DomainEvent{
			EventType:     decision.EventType(enums.EventTankReadingApproved, enums.EventTankReadingRejected),
			AggregateType: enums.AggregateTankReading,
			AggregateID:   reading.ID,
			GasStationID:  reading.GasStationID,
			Actor:         grant.ActorRef(),
			Data: payloads.ApprovalDecidedEvent{
				RecordID:      reading.ID,
				GasStationID:  reading.GasStationID,
				Status:        decision.Status,
				DecidedBy:     decision.DecidedBy,
				CreatedBy:     reading.CreatedBy,
				TransactionID: reading.TransactionID,
				Reason:        strings.TrimSpace(reason),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit tank reading decision")
		}
		s.metrics.IncDecision(approval.RecordTankReading, string(decision.Status))

		result, err = repo.Find(ctx, reading.ID)
		if err != nil {
			return readingError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := Evaluate(*result)
	return &out, nil
}

// postVariance books a loss as shrinkage expense and a gain as surplus
// revenue, both at the product's purchase price. A loss also notifies.
func (s *service) postVariance(ctx context.Context, tx *gorm.DB, grant access.Grant, reading *models.TankReading, tank *models.Tank) (*models.Transaction, error) {
	evaluated := Evaluate(*reading)
	if evaluated.Variance == nil || evaluated.Variance.IsZero() {
		return nil, nil
	}
	if tank.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tank product not loaded")
	}
	liters := evaluated.Variance.Abs()
	amount := liters.Mul(tank.Product.PurchasePrice).Round(2)
	if !amount.IsPositive() {
		return nil, nil
	}

	inventoryCOA, err := s.poster.FindOrCreateCOA(ctx, tx, tank.GasStationID, ledger.FuelInventory(tank.Product.Name))
	if err != nil {
		return nil, err
	}
	counter := ledger.FuelSurplus
	if evaluated.Loss {
		counter = ledger.FuelShrinkage
	}
	counterCOA, err := s.poster.FindOrCreateCOA(ctx, tx, tank.GasStationID, counter)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("%s %s L on %s (%s)", strings.ToLower(counter.Name), liters.String(), tank.Name, reading.OperationalDate)
	entries := []ledger.EntryInput{
		{COAID: inventoryCOA.ID, Debit: amount, Description: note},
		{COAID: counterCOA.ID, Credit: amount, Description: note},
	}
	if evaluated.Loss {
		entries = []ledger.EntryInput{
			{COAID: counterCOA.ID, Debit: amount, Description: note},
			{COAID: inventoryCOA.ID, Credit: amount, Description: note},
		}
	}
	posted, err := s.poster.Post(ctx, tx, ledger.PostInput{
		GasStationID:  tank.GasStationID,
		Date:          reading.ReadingAt,
		Type:          enums.TransactionTankReading,
		Origin:        enums.OriginAuto,
		Description:   "Tank reading variance: " + note,
		ReferenceType: ReferenceTankReading,
		ReferenceID:   &reading.ID,
		CreatedBy:     grant.UserID(),
		Entries:       entries,
	})
	if err != nil {
		return nil, err
	}

	if evaluated.Loss {
		event := outbox.DomainEvent{
			EventType:     enums.EventTankLossDetected,
			AggregateType: enums.AggregateTankReading,
			AggregateID:   reading.ID,
			GasStationID:  reading.GasStationID,
			Actor:         grant.ActorRef(),
			Data: payloads.TankLossDetectedEvent{
				TankReadingID: reading.ID,
				TankID:        tank.ID,
				GasStationID:  tank.GasStationID,
				LiterValue:    reading.LiterValue,
				StockRealtime: *reading.StockRealtime,
				EstimatedLoss: *evaluated.EstimatedLoss,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit tank loss")
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"tank_id":        tank.ID.String(),
			"reading_id":     reading.ID.String(),
			"estimated_loss": evaluated.EstimatedLoss.String(),
		}), "tank loss detected")
	}
	return posted, nil
}

// Get returns a reading. Rows written before snapshots existed are evaluated
// against a fresh recomputation that is not persisted.
func (s *service) Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*Reading, error) {
	reading, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, readingError(err)
	}
	if err := grant.Require(access.CapMasterDataView, reading.GasStationID); err != nil {
		return nil, err
	}
	if !reading.HasSnapshot() {
		tank, err := s.inventory.FindTank(ctx, nil, reading.TankID)
		if err != nil {
			return nil, err
		}
		hours, err := s.hours(ctx, s.repo, reading.GasStationID)
		if err != nil {
			return nil, err
		}
		open, realtime, err := s.snapshot(ctx, nil, tank, hours, reading)
		if err != nil {
			return nil, err
		}
		reading.StockOpen, reading.StockRealtime = &open, &realtime
	}
	out := Evaluate(*reading)
	return &out, nil
}

func (s *service) List(ctx context.Context, grant access.Grant, input ListInput) (*List, error) {
	if err := grant.Require(access.CapMasterDataView, input.GasStationID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		GasStationID: input.GasStationID,
		TankID:       input.TankID,
		Status:       input.Status,
		Cursor:       cursor,
		Limit:        input.Params.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tank readings")
	}
	page, next := pagination.Page(rows, input.Params.Limit, func(r models.TankReading) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	items := make([]Reading, 0, len(page))
	for _, row := range page {
		items = append(items, Evaluate(row))
	}
	return &List{Items: items, NextCursor: next}, nil
}
