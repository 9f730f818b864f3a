package tankstock

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DayInputs gathers everything that moved a tank during one operational day.
type DayInputs struct {
	TankID   uuid.UUID
	TankName string
	Date     string

	StockOpen decimal.Decimal
	Unloads   decimal.Decimal
	Titipan   decimal.Decimal
	Sales     decimal.Decimal
	PumpTest  decimal.Decimal

	// Reading is the day's live dip reading, if one was taken.
	Reading *decimal.Decimal
	// ReadingStockRealtime is the calculated stock captured with Reading.
	ReadingStockRealtime *decimal.Decimal

	CloseYesterday      *decimal.Decimal
	CalculatedYesterday *decimal.Decimal
}

// ReconciliationRow is one tank's line in the daily report.
type ReconciliationRow struct {
	TankID             uuid.UUID        `json:"tank_id"`
	TankName           string           `json:"tank_name"`
	Date               string           `json:"date"`
	StockOpen          decimal.Decimal  `json:"stock_open"`
	VarianceOpen       *decimal.Decimal `json:"variance_open,omitempty"`
	TotalIn            decimal.Decimal  `json:"total_in"`
	Sales              decimal.Decimal  `json:"sales"`
	PumpTest           decimal.Decimal  `json:"pump_test"`
	TotalOut           decimal.Decimal  `json:"total_out"`
	StockByCalculation decimal.Decimal  `json:"stock_by_calculation"`
	TankReading        *decimal.Decimal `json:"tank_reading,omitempty"`
	Variance           *decimal.Decimal `json:"variance,omitempty"`
	EstimatedLoss      *decimal.Decimal `json:"estimated_loss,omitempty"`
	Loss               bool             `json:"loss"`
}

// DailyReconciliation composes the calculator into a report row. The variance
// is measured against the snapshot taken with the reading when there is one.
func DailyReconciliation(in DayInputs) ReconciliationRow {
	totalIn := in.Unloads.Add(in.Titipan)
	byCalc := StockByCalculation(in.StockOpen, totalIn, in.Sales, in.PumpTest)

	base := byCalc
	if in.ReadingStockRealtime != nil {
		base = *in.ReadingStockRealtime
	}
	variance := Variance(in.Reading, base)
	loss := EstimatedLoss(variance)

	return ReconciliationRow{
		TankID:             in.TankID,
		TankName:           in.TankName,
		Date:               in.Date,
		StockOpen:          in.StockOpen,
		VarianceOpen:       VarianceOpen(in.StockOpen, in.CloseYesterday, in.CalculatedYesterday),
		TotalIn:            totalIn,
		Sales:              in.Sales,
		PumpTest:           in.PumpTest,
		TotalOut:           in.Sales.Add(in.PumpTest),
		StockByCalculation: byCalc,
		TankReading:        in.Reading,
		Variance:           variance,
		EstimatedLoss:      loss,
		Loss:               loss != nil,
	}
}
