package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fuelstation-backend/internal/servicetest"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func at(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func newReconciliation(t *testing.T) (*servicetest.Env, *service) {
	t.Helper()
	env := servicetest.New(t, dbtest.StationOptions{})
	svc, err := NewService(NewRepository(env.Conn), env.Inventory)
	require.NoError(t, err)
	return env, svc.(*service)
}

// seedDay writes, on operational day 2026-03-02 of an 8,000 L tank, an
// approved 1,000 L unload, a completed shift that sold 145 L plus 5 L pump
// test, and a pending 8,800 L dip taken against a calculated 8,850 L.
func seedDay(t *testing.T, env *servicetest.Env) *models.TankReading {
	t.Helper()
	conn, gsID := env.Conn, env.Station.GasStation.ID
	require.NoError(t, conn.Create(&models.Unload{
		GasStationID: gsID,
		TankID:       env.Station.Tank.ID,
		Liters:       dec("1000"),
		UnloadedAt:   at(2, 2),
		Status:       enums.ApprovalApproved,
		CreatedBy:    uuid.New(),
	}).Error)

	ended := at(2, 8)
	shift := models.OperatorShift{
		GasStationID: gsID,
		StationID:    env.Station.Island.ID,
		OperatorID:   uuid.New(),
		ShiftDate:    "2026-03-02",
		Slot:         enums.ShiftMorning,
		Status:       enums.ShiftCompleted,
		StartedAt:    at(2, 0),
		EndedAt:      &ended,
	}
	require.NoError(t, conn.Create(&shift).Error)
	readings := []models.NozzleReading{
		{ShiftID: shift.ID, NozzleID: env.Station.Nozzles[0].ID, Type: enums.ReadingOpen, Totalizer: dec("1000"), PumpTest: decimal.Zero, CreatedBy: shift.OperatorID},
		{ShiftID: shift.ID, NozzleID: env.Station.Nozzles[0].ID, Type: enums.ReadingClose, Totalizer: dec("1100"), PumpTest: dec("5"), CreatedBy: shift.OperatorID},
		{ShiftID: shift.ID, NozzleID: env.Station.Nozzles[1].ID, Type: enums.ReadingOpen, Totalizer: dec("2000"), PumpTest: decimal.Zero, CreatedBy: shift.OperatorID},
		{ShiftID: shift.ID, NozzleID: env.Station.Nozzles[1].ID, Type: enums.ReadingClose, Totalizer: dec("2050"), PumpTest: decimal.Zero, CreatedBy: shift.OperatorID},
	}
	require.NoError(t, conn.Create(&readings).Error)

	open, realtime := dec("8000"), dec("8850")
	reading := models.TankReading{
		GasStationID:    gsID,
		TankID:          env.Station.Tank.ID,
		LiterValue:      dec("8800"),
		ReadingAt:       at(2, 10),
		OperationalDate: "2026-03-02",
		StockOpen:       &open,
		StockRealtime:   &realtime,
		Status:          enums.ApprovalPending,
		CreatedBy:       uuid.New(),
	}
	require.NoError(t, conn.Create(&reading).Error)
	return &reading
}

func TestDailyReconciliationRow(t *testing.T) {
	env, svc := newReconciliation(t)
	reading := seedDay(t, env)

	report, err := svc.DailyReconciliation(context.Background(), env.Grant(enums.RoleFinance), env.Station.GasStation.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC), report.WindowStart)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, "Tank 1", row.TankName)
	assert.Equal(t, "8000", row.StockOpen.String())
	assert.Equal(t, "1000", row.TotalIn.String())
	assert.Equal(t, "145", row.Sales.String())
	assert.Equal(t, "5", row.PumpTest.String())
	assert.Equal(t, "150", row.TotalOut.String())
	assert.Equal(t, "8850", row.StockByCalculation.String())
	require.NotNil(t, row.TankReading)
	assert.Equal(t, "8800", row.TankReading.String())
	require.NotNil(t, row.Variance)
	assert.Equal(t, "-50", row.Variance.String())
	require.NotNil(t, row.EstimatedLoss)
	assert.Equal(t, "50", row.EstimatedLoss.String())
	assert.True(t, row.Loss)
	require.NotNil(t, row.VarianceOpen)
	assert.True(t, row.VarianceOpen.IsZero())
	assert.Equal(t, reading.ID, *row.ReadingID)
	assert.Equal(t, enums.ApprovalPending, *row.ReadingStatus)
}

func TestNextDayOpensFromApprovedDip(t *testing.T) {
	env, svc := newReconciliation(t)
	reading := seedDay(t, env)
	require.NoError(t, env.Conn.Model(&models.TankReading{}).Where("id = ?", reading.ID).Update("status", enums.ApprovalApproved).Error)

	report, err := svc.DailyReconciliation(context.Background(), env.Grant(enums.RoleOwner), env.Station.GasStation.ID, "2026-03-03")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, "8800", row.StockOpen.String())
	assert.True(t, row.TotalIn.IsZero())
	assert.Equal(t, "8800", row.StockByCalculation.String())
	assert.Nil(t, row.TankReading)
	assert.Nil(t, row.Variance)
	assert.False(t, row.Loss)
	require.NotNil(t, row.VarianceOpen)
	assert.True(t, row.VarianceOpen.IsZero())
}

func TestFirstDayHasNoOpeningVariance(t *testing.T) {
	env, svc := newReconciliation(t)

	report, err := svc.DailyReconciliation(context.Background(), env.Grant(enums.RoleManager), env.Station.GasStation.ID, "2026-01-01")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Nil(t, report.Rows[0].VarianceOpen)
	assert.Equal(t, "8000", report.Rows[0].StockOpen.String())

	report, err = svc.DailyReconciliation(context.Background(), env.Grant(enums.RoleManager), env.Station.GasStation.ID, "2025-12-30")
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
}

func TestDailyReconciliationErrors(t *testing.T) {
	env, svc := newReconciliation(t)
	ctx := context.Background()

	_, err := svc.DailyReconciliation(ctx, env.Grant(enums.RoleFinance), env.Station.GasStation.ID, "02/03/2026")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	_, err = svc.DailyReconciliation(ctx, env.Grant(enums.RoleOperator), env.Station.GasStation.ID, "2026-03-02")
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestTankStock(t *testing.T) {
	env, svc := newReconciliation(t)
	seedDay(t, env)
	svc.now = func() time.Time { return at(2, 12) }

	stock, err := svc.TankStock(context.Background(), env.Grant(enums.RoleUnloader), env.Station.Tank.ID)
	require.NoError(t, err)
	assert.Equal(t, "8850", stock.Stock.String())
	assert.Equal(t, "1150", stock.Headroom.String())
	assert.Equal(t, "Pertalite", stock.Product)
	assert.False(t, stock.Oversold)

	_, err = svc.TankStock(context.Background(), env.Grant(enums.RoleUnloader), uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
