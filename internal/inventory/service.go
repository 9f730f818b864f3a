// Package inventory derives tank stock from the approved event stream. Stock is
// never stored: it is the latest approved dip reading (or the tank's initial
// stock) plus approved deliveries minus completed-shift sales since then.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/tankstock"
	"github.com/angelmondragon/fuelstation-backend/pkg/db"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

// Service computes stock inside the caller's transaction.
type Service interface {
	LockTank(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Tank, error)
	FindTank(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Tank, error)
	ListTanks(ctx context.Context, tx *gorm.DB, gasStationID uuid.UUID) ([]models.Tank, error)
	Stock(ctx context.Context, tx *gorm.DB, tank *models.Tank, at time.Time, excludeReadingID *uuid.UUID) (decimal.Decimal, error)
	Movements(ctx context.Context, tx *gorm.DB, tankID uuid.UUID, after, upTo time.Time) (Movements, error)
	CurrentAnchor(ctx context.Context, tx *gorm.DB, tank *models.Tank) (Anchor, error)
	EnsureCapacity(ctx context.Context, tx *gorm.DB, tank *models.Tank, liters decimal.Decimal, at time.Time) error
	ShiftsSpanning(ctx context.Context, tx *gorm.DB, tankID uuid.UUID, at time.Time) ([]uuid.UUID, error)
}

// Anchor is the stock baseline later movements are added to: the latest
// approved dip reading, or the tank's initial stock at creation.
type Anchor struct {
	Stock decimal.Decimal
	At    time.Time
}

// Covers reports whether a movement at the instant at is already folded into
// the anchor and would therefore never change stock.
func (a Anchor) Covers(at time.Time) bool {
	return !at.After(a.At)
}

// EnsureAfter fails with code when a movement recorded under field at the
// instant at would be covered by the anchor.
func (a Anchor) EnsureAfter(at time.Time, code pkgerrors.Code, field string) error {
	if !a.Covers(at) {
		return nil
	}
	return pkgerrors.New(code, field+" must be after the tank's latest approved reading").
		WithDetails(map[string]any{field: at, "anchor_at": a.At, "anchor_stock": a.Stock})
}

// Movements totals what entered and left a tank over a window.
type Movements struct {
	Unloads  decimal.Decimal
	Titipan  decimal.Decimal
	Sales    decimal.Decimal
	PumpTest decimal.Decimal
}

// In is every liter delivered over the window.
func (m Movements) In() decimal.Decimal {
	return m.Unloads.Add(m.Titipan)
}

type service struct {
	repo Repository
}

// NewService wires the stock calculator.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) LockTank(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Tank, error) {
	tank, err := s.repo.WithTx(tx).LockTank(ctx, id)
	return tank, tankError(err)
}

func (s *service) FindTank(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Tank, error) {
	tank, err := s.repo.WithTx(tx).FindTank(ctx, id)
	return tank, tankError(err)
}

func tankError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "tank not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tank")
}

func (s *service) ListTanks(ctx context.Context, tx *gorm.DB, gasStationID uuid.UUID) ([]models.Tank, error) {
	tanks, err := s.repo.WithTx(tx).ListTanks(ctx, gasStationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tanks")
	}
	return tanks, nil
}

// Stock returns the calculated stock of tank at the instant at. excludeReadingID
// leaves one reading out of the anchor search so a reading can be compared
// against the stock it would replace.
func (s *service) Stock(ctx context.Context, tx *gorm.DB, tank *models.Tank, at time.Time, excludeReadingID *uuid.UUID) (decimal.Decimal, error) {
	anchor, err := s.anchor(ctx, tx, tank, &at, excludeReadingID)
	if err != nil {
		return decimal.Zero, err
	}
	if at.Before(anchor.At) {
		return anchor.Stock, nil
	}

	moved, err := s.Movements(ctx, tx, tank.ID, anchor.At, at)
	if err != nil {
		return decimal.Zero, err
	}
	return tankstock.StockByCalculation(anchor.Stock, moved.In(), moved.Sales, moved.PumpTest), nil
}

// CurrentAnchor is the latest anchor regardless of when it was taken.
func (s *service) CurrentAnchor(ctx context.Context, tx *gorm.DB, tank *models.Tank) (Anchor, error) {
	return s.anchor(ctx, tx, tank, nil, nil)
}

func (s *service) anchor(ctx context.Context, tx *gorm.DB, tank *models.Tank, at *time.Time, exclude *uuid.UUID) (Anchor, error) {
	anchor := Anchor{Stock: tank.InitialStock, At: tank.CreatedAt}
	reading, err := s.repo.WithTx(tx).LatestApprovedReading(ctx, tank.ID, at, exclude)
	if err != nil {
		return anchor, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load anchor reading")
	}
	if reading != nil {
		anchor.Stock, anchor.At = reading.LiterValue, reading.ReadingAt
	}
	return anchor, nil
}

// Movements sums approved deliveries and completed-shift sales in (after, upTo].
func (s *service) Movements(ctx context.Context, tx *gorm.DB, tankID uuid.UUID, after, upTo time.Time) (Movements, error) {
	repo := s.repo.WithTx(tx)
	moved := Movements{Unloads: decimal.Zero, Titipan: decimal.Zero, Sales: decimal.Zero, PumpTest: decimal.Zero}

	unloads, err := repo.ApprovedUnloadLiters(ctx, tankID, after, upTo)
	if err != nil {
		return moved, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum unloads")
	}
	moved.Unloads = decimal.Sum(decimal.Zero, unloads...)

	fills, err := repo.ApprovedTitipanLiters(ctx, tankID, after, upTo)
	if err != nil {
		return moved, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum titipan fills")
	}
	moved.Titipan = decimal.Sum(decimal.Zero, fills...)

	readings, err := repo.CompletedNozzleReadings(ctx, tankID, after, upTo)
	if err != nil {
		return moved, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load nozzle readings")
	}
	moved.Sales, moved.PumpTest = SalesOf(readings)
	return moved, nil
}

type pairKey struct {
	shift  uuid.UUID
	nozzle uuid.UUID
}

// SalesOf pairs OPEN and CLOSE readings per shift and nozzle and returns the
// clamped sales and the pump test volume. Unpaired readings contribute nothing.
func SalesOf(readings []ShiftNozzleReading) (decimal.Decimal, decimal.Decimal) {
	opens := make(map[pairKey]ShiftNozzleReading)
	closes := make(map[pairKey]ShiftNozzleReading)
	for _, r := range readings {
		key := pairKey{shift: r.ShiftID, nozzle: r.NozzleID}
		if r.Type == enums.ReadingOpen {
			opens[key] = r
		} else {
			closes[key] = r
		}
	}
	sales, pumpTest := decimal.Zero, decimal.Zero
	for key, closing := range closes {
		opening, ok := opens[key]
		if !ok {
			continue
		}
		sales = sales.Add(tankstock.SalesFromReadings(opening.Totalizer, closing.Totalizer, closing.PumpTest))
		pumpTest = pumpTest.Add(closing.PumpTest)
	}
	return sales, pumpTest
}

// EnsureCapacity rejects liters that would overfill tank delivered at the
// instant at. Stock only peaks right after a delivery, so the check runs at at,
// at every approved delivery after it, and at now: a backdated delivery has to
// fit on top of everything that arrived since.
func (s *service) EnsureCapacity(ctx context.Context, tx *gorm.DB, tank *models.Tank, liters decimal.Decimal, at time.Time) error {
	checkpoints := []time.Time{at}
	if now := db.NowUTC(); now.After(at) {
		later, err := s.repo.WithTx(tx).ApprovedDeliveryTimes(ctx, tank.ID, at, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load deliveries")
		}
		checkpoints = append(checkpoints, later...)
		checkpoints = append(checkpoints, now)
	}

	var worst decimal.Decimal
	for i, point := range checkpoints {
		stock, err := s.Stock(ctx, tx, tank, point, nil)
		if err != nil {
			return err
		}
		if i == 0 || stock.GreaterThan(worst) {
			worst = stock
		}
	}
	if tankstock.FitsCapacity(tank.Capacity, worst, liters) {
		return nil
	}
	headroom := tankstock.Headroom(tank.Capacity, worst)
	return pkgerrors.New(pkgerrors.CodeCapacity,
		fmt.Sprintf("tank %s can take %s L more; %s L requested", tank.Name, headroom.String(), liters.String())).
		WithDetails(map[string]any{
			"tank_id":       tank.ID,
			"current_stock": worst,
			"capacity":      tank.Capacity,
			"headroom":      headroom,
			"requested":     liters,
		})
}

// ShiftsSpanning lists shifts on islands fed by the tank that were dispensing
// at the instant at. Their sales are only counted once they end, so a dip taken
// mid-shift cannot be compared against calculated stock.
func (s *service) ShiftsSpanning(ctx context.Context, tx *gorm.DB, tankID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	ids, err := s.repo.WithTx(tx).ShiftsSpanning(ctx, tankID, at)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load running shifts")
	}
	return ids, nil
}
