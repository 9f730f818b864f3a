// Package reconciliation renders the read-only views over derived stock: the
// daily per-tank reconciliation and the current stock of a tank. Nothing here
// writes; every figure is recomputed from the approved event stream.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/inventory"
	"github.com/angelmondragon/fuelstation-backend/internal/masterdata"
	"github.com/angelmondragon/fuelstation-backend/internal/tankstock"
	"github.com/angelmondragon/fuelstation-backend/pkg/db"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

type Service interface {
	DailyReconciliation(ctx context.Context, grant access.Grant, gasStationID uuid.UUID, date string) (*Report, error)
	TankStock(ctx context.Context, grant access.Grant, tankID uuid.UUID) (*TankStock, error)
}

// Report is the reconciliation of every tank of a gas station for one
// operational day.
type Report struct {
	GasStationID uuid.UUID `json:"gas_station_id"`
	Date         string    `json:"date"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	Rows         []Row     `json:"rows"`
}

// Row is one tank's line, with the dip reading it was measured against.
type Row struct {
	tankstock.ReconciliationRow
	ReadingID     *uuid.UUID            `json:"reading_id,omitempty"`
	ReadingStatus *enums.ApprovalStatus `json:"reading_status,omitempty"`
}

// TankStock is the derived stock of a tank right now.
type TankStock struct {
	TankID     uuid.UUID       `json:"tank_id"`
	TankName   string          `json:"tank_name"`
	Product    string          `json:"product"`
	Capacity   decimal.Decimal `json:"capacity"`
	Stock      decimal.Decimal `json:"stock"`
	Headroom   decimal.Decimal `json:"headroom"`
	Oversold   bool            `json:"oversold"`
	MeasuredAt time.Time       `json:"measured_at"`
}

type service struct {
	repo      Repository
	inventory inventory.Service
	now       func() time.Time
}

func NewService(repo Repository, inv inventory.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{repo: repo, inventory: inv, now: db.NowUTC}, nil
}

func (s *service) DailyReconciliation(ctx context.Context, grant access.Grant, gasStationID uuid.UUID, date string) (*Report, error) {
	if err := grant.Require(access.CapReportView, gasStationID); err != nil {
		return nil, err
	}
	gs, err := s.repo.FindGasStation(ctx, gasStationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gas station not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gas station")
	}
	hours, err := masterdata.Hours(gs)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = hours.OperationalDate(s.now())
	}
	start, end, err := hours.Window(date)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date must be YYYY-MM-DD")
	}
	yesterday, err := tankstock.PreviousDate(date)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date must be YYYY-MM-DD")
	}

	tanks, err := s.inventory.ListTanks(ctx, nil, gasStationID)
	if err != nil {
		return nil, err
	}
	report := &Report{GasStationID: gasStationID, Date: date, WindowStart: start, WindowEnd: end, Rows: make([]Row, 0, len(tanks))}
	for i := range tanks {
		tank := &tanks[i]
		if !tank.CreatedAt.Before(end) {
			continue
		}
		row, err := s.row(ctx, hours, tank, date, yesterday, start, end)
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

func (s *service) row(ctx context.Context, hours tankstock.Hours, tank *models.Tank, date, yesterday string, start, end time.Time) (Row, error) {
	stockOpen, err := s.inventory.Stock(ctx, nil, tank, start, nil)
	if err != nil {
		return Row{}, err
	}
	moved, err := s.inventory.Movements(ctx, nil, tank.ID, start, end)
	if err != nil {
		return Row{}, err
	}
	in := tankstock.DayInputs{
		TankID:    tank.ID,
		TankName:  tank.Name,
		Date:      date,
		StockOpen: stockOpen,
		Unloads:   moved.Unloads,
		Titipan:   moved.Titipan,
		Sales:     moved.Sales,
		PumpTest:  moved.PumpTest,
	}

	var out Row
	reading, err := s.repo.LiveReading(ctx, tank.ID, date)
	if err != nil {
		return Row{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tank reading")
	}
	if reading != nil {
		realtime := reading.StockRealtime
		if realtime == nil {
			computed, err := s.inventory.Stock(ctx, nil, tank, reading.ReadingAt, &reading.ID)
			if err != nil {
				return Row{}, err
			}
			realtime = &computed
		}
		liters := reading.LiterValue
		in.Reading = &liters
		in.ReadingStockRealtime = realtime
		out.ReadingID = &reading.ID
		status := reading.Status
		out.ReadingStatus = &status
	}

	closing, err := s.repo.LiveReading(ctx, tank.ID, yesterday)
	if err != nil {
		return Row{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load previous reading")
	}
	if closing != nil {
		liters := closing.LiterValue
		in.CloseYesterday = &liters
	}
	yStart, _, err := hours.Window(yesterday)
	if err != nil {
		return Row{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date")
	}
	if tank.CreatedAt.Before(start) {
		calculated, err := s.calculated(ctx, tank, yStart, start)
		if err != nil {
			return Row{}, err
		}
		in.CalculatedYesterday = &calculated
	}

	out.ReconciliationRow = tankstock.DailyReconciliation(in)
	return out, nil
}

// calculated is the stock by calculation at the end of the window that starts
// at start.
func (s *service) calculated(ctx context.Context, tank *models.Tank, start, end time.Time) (decimal.Decimal, error) {
	open, err := s.inventory.Stock(ctx, nil, tank, start, nil)
	if err != nil {
		return decimal.Zero, err
	}
	moved, err := s.inventory.Movements(ctx, nil, tank.ID, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	return tankstock.StockByCalculation(open, moved.In(), moved.Sales, moved.PumpTest), nil
}

func (s *service) TankStock(ctx context.Context, grant access.Grant, tankID uuid.UUID) (*TankStock, error) {
	tank, err := s.inventory.FindTank(ctx, nil, tankID)
	if err != nil {
		return nil, err
	}
	if err := grant.Require(access.CapMasterDataView, tank.GasStationID); err != nil {
		return nil, err
	}
	at := s.now()
	stock, err := s.inventory.Stock(ctx, nil, tank, at, nil)
	if err != nil {
		return nil, err
	}
	result := &TankStock{
		TankID:     tank.ID,
		TankName:   tank.Name,
		Capacity:   tank.Capacity,
		Stock:      stock,
		Headroom:   tankstock.Headroom(tank.Capacity, stock),
		Oversold:   stock.IsNegative(),
		MeasuredAt: at,
	}
	if tank.Product != nil {
		result.Product = tank.Product.Name
	}
	return result, nil
}
