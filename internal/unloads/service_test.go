package unloads

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/internal/servicetest"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/pagination"
)

var unloadTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newUnloads(t *testing.T) (*servicetest.Env, Service) {
	t.Helper()
	env := servicetest.New(t, dbtest.StationOptions{})
	svc, err := NewService(NewRepository(env.Conn), env.Client, env.Inventory, env.Ledger, env.Outbox, env.Logger, nil)
	require.NoError(t, err)
	return env, svc
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCreateUnloadOverCapacity(t *testing.T) {
	env, svc := newUnloads(t)

	_, err := svc.Create(context.Background(), env.Grant(enums.RoleUnloader), CreateInput{
		TankID:     env.Station.Tank.ID,
		Liters:     dec("5000"),
		UnloadedAt: unloadTime,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeCapacity, typed.Code())
	assert.Contains(t, typed.Message(), "2000 L more")
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.True(t, details["headroom"].(decimal.Decimal).Equal(dec("2000")))
	assert.True(t, details["current_stock"].(decimal.Decimal).Equal(dec("8000")))
}

func TestApproveUnloadCountsTowardStock(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()

	unload, err := svc.Create(ctx, env.Grant(enums.RoleUnloader), CreateInput{
		TankID:     env.Station.Tank.ID,
		Liters:     dec("1500"),
		UnloadedAt: unloadTime,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ApprovalPending, unload.Status)
	assert.True(t, env.Stock(t, unloadTime.Add(time.Hour)).Equal(dec("8000")))

	approved, err := svc.Approve(ctx, env.Grant(enums.RoleManager), unload.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ApprovalApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Nil(t, approved.TransactionID)
	assert.True(t, env.Stock(t, unloadTime.Add(time.Hour)).Equal(dec("9500")))

	events := env.Events(t, unload.ID)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventUnloadApproved, events[0].EventType)
}

func TestApproveUnloadTwiceIsConflictWithoutSideEffects(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()
	manager := env.Grant(enums.RoleManager)
	invoice := dec("1600")

	unload, err := svc.Create(ctx, env.Grant(enums.RoleUnloader), CreateInput{
		TankID:        env.Station.Tank.ID,
		Liters:        dec("1500"),
		InvoiceLiters: &invoice,
		UnloadedAt:    unloadTime,
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, manager, unload.ID)
	require.NoError(t, err)

	stockBefore := env.Stock(t, unloadTime.Add(time.Hour))
	txBefore := env.CountTransactions(t)
	shrinkBefore := env.COABalance(t, ledger.UnloadShrinkage.Name)

	_, err = svc.Approve(ctx, manager, unload.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	_, err = svc.Reject(ctx, manager, unload.ID, "late")
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	assert.True(t, env.Stock(t, unloadTime.Add(time.Hour)).Equal(stockBefore))
	assert.Equal(t, txBefore, env.CountTransactions(t))
	assert.True(t, env.COABalance(t, ledger.UnloadShrinkage.Name).Equal(shrinkBefore))
	assert.Len(t, env.Events(t, unload.ID), 1)
}

func TestApproveUnloadPostsShrinkage(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()
	invoice := dec("2100")

	unload, err := svc.Create(ctx, env.Grant(enums.RoleUnloader), CreateInput{
		TankID:        env.Station.Tank.ID,
		Liters:        dec("2000"),
		InvoiceLiters: &invoice,
		InvoiceRef:    "DO-118",
		UnloadedAt:    unloadTime,
	})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, env.Grant(enums.RoleOwner), unload.ID)
	require.NoError(t, err)
	require.NotNil(t, approved.TransactionID)

	txn, err := env.Ledger.Get(ctx, env.Grant(enums.RoleOwner), *approved.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionUnload, txn.Type)
	assert.Equal(t, enums.OriginAuto, txn.Origin)
	assert.Equal(t, enums.ApprovalApproved, txn.Status)

	assert.Equal(t, "1000000.00", env.COABalance(t, ledger.UnloadShrinkage.Name).StringFixed(2))
	assert.Equal(t, "-1000000.00", env.COABalance(t, ledger.FuelInventory("Pertalite").Name).StringFixed(2))
}

func TestApprovalRechecksCapacity(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()
	unloader := env.Grant(enums.RoleUnloader)

	first, err := svc.Create(ctx, unloader, CreateInput{TankID: env.Station.Tank.ID, Liters: dec("1500"), UnloadedAt: unloadTime})
	require.NoError(t, err)
	second, err := svc.Create(ctx, unloader, CreateInput{TankID: env.Station.Tank.ID, Liters: dec("1500"), UnloadedAt: unloadTime.Add(time.Hour)})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, env.Grant(enums.RoleManager), first.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, env.Grant(enums.RoleManager), second.ID)
	assert.Equal(t, pkgerrors.CodeCapacity, pkgerrors.As(err).Code())

	still, err := svc.Get(ctx, unloader, second.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ApprovalPending, still.Status)
}

func TestBackdatedUnloadMustFitOnTopOfLaterDeliveries(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()
	unloader, manager := env.Grant(enums.RoleUnloader), env.Grant(enums.RoleManager)

	early, err := svc.Create(ctx, unloader, CreateInput{TankID: env.Station.Tank.ID, Liters: dec("2000"), UnloadedAt: unloadTime.Add(-time.Hour)})
	require.NoError(t, err)
	full, err := svc.Create(ctx, unloader, CreateInput{TankID: env.Station.Tank.ID, Liters: dec("2000"), UnloadedAt: unloadTime})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, manager, full.ID)
	require.NoError(t, err)
	assert.True(t, env.Stock(t, unloadTime.Add(time.Hour)).Equal(dec("10000")))

	_, err = svc.Create(ctx, unloader, CreateInput{TankID: env.Station.Tank.ID, Liters: dec("2000"), UnloadedAt: unloadTime.Add(-time.Hour)})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeCapacity, pkgerrors.As(err).Code())

	_, err = svc.Approve(ctx, manager, early.ID)
	assert.Equal(t, pkgerrors.CodeCapacity, pkgerrors.As(err).Code())
	assert.True(t, env.Stock(t, unloadTime.Add(time.Hour)).Equal(dec("10000")))
}

func TestUnloadCoveredByAnchorIsRefused(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()
	unloader := env.Grant(enums.RoleUnloader)

	_, err := svc.Create(ctx, unloader, CreateInput{TankID: env.Station.Tank.ID, Liters: dec("100"), UnloadedAt: dbtest.Epoch.Add(-time.Hour)})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	pending, err := svc.Create(ctx, unloader, CreateInput{TankID: env.Station.Tank.ID, Liters: dec("100"), UnloadedAt: unloadTime})
	require.NoError(t, err)

	require.NoError(t, env.Conn.Create(&models.TankReading{
		GasStationID:    env.Station.GasStation.ID,
		TankID:          env.Station.Tank.ID,
		LiterValue:      dec("7900"),
		ReadingAt:       unloadTime.Add(2 * time.Hour),
		OperationalDate: "2026-03-01",
		Status:          enums.ApprovalApproved,
		CreatedBy:       uuid.New(),
	}).Error)

	_, err = svc.Create(ctx, unloader, CreateInput{TankID: env.Station.Tank.ID, Liters: dec("100"), UnloadedAt: unloadTime.Add(time.Hour)})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Message(), "unloaded_at")

	_, err = svc.Approve(ctx, env.Grant(enums.RoleManager), pending.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	still, err := svc.Get(ctx, unloader, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ApprovalPending, still.Status)
}

func TestRejectUnload(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()

	unload, err := svc.Create(ctx, env.Grant(enums.RoleUnloader), CreateInput{TankID: env.Station.Tank.ID, Liters: dec("100"), UnloadedAt: unloadTime})
	require.NoError(t, err)

	_, err = svc.Reject(ctx, env.Grant(enums.RoleUnloader), unload.ID, "wrong tank")
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	rejected, err := svc.Reject(ctx, env.Grant(enums.RoleManager), unload.ID, "wrong tank")
	require.NoError(t, err)
	assert.Equal(t, enums.ApprovalRejected, rejected.Status)
	assert.True(t, env.Stock(t, unloadTime.Add(time.Hour)).Equal(dec("8000")))
	events := env.Events(t, unload.ID)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventUnloadRejected, events[0].EventType)
}

func TestCreateUnloadLinksPurchase(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()

	other := models.Transaction{
		GasStationID: env.Station.GasStation.ID,
		Date:         unloadTime,
		Type:         enums.TransactionCash,
		Status:       enums.ApprovalPending,
		Origin:       enums.OriginManual,
		CreatedBy:    uuid.New(),
	}
	require.NoError(t, env.Conn.Create(&other).Error)

	_, err := svc.Create(ctx, env.Grant(enums.RoleUnloader), CreateInput{
		TankID:                env.Station.Tank.ID,
		Liters:                dec("100"),
		PurchaseTransactionID: &other.ID,
		UnloadedAt:            unloadTime,
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	missing := uuid.New()
	_, err = svc.Create(ctx, env.Grant(enums.RoleUnloader), CreateInput{
		TankID:                env.Station.Tank.ID,
		Liters:                dec("100"),
		PurchaseTransactionID: &missing,
		UnloadedAt:            unloadTime,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestPurchaseLitersBoundLinkedUnloads(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()
	unloader := env.Grant(enums.RoleUnloader)

	bought := dec("3000")
	purchase := models.Transaction{
		GasStationID: env.Station.GasStation.ID,
		Date:         unloadTime,
		Type:         enums.TransactionPurchase,
		Status:       enums.ApprovalApproved,
		Origin:       enums.OriginManual,
		ReferenceID:  &env.Station.Product.ID,
		Liters:       &bought,
		CreatedBy:    uuid.New(),
	}
	require.NoError(t, env.Conn.Create(&purchase).Error)
	link := func(liters string, invoice *decimal.Decimal) (*models.Unload, error) {
		return svc.Create(ctx, unloader, CreateInput{
			TankID:                env.Station.Tank.ID,
			Liters:                dec(liters),
			InvoiceLiters:         invoice,
			PurchaseTransactionID: &purchase.ID,
			UnloadedAt:            unloadTime,
		})
	}

	first, err := link("1000", nil)
	require.NoError(t, err)
	require.NotNil(t, first.InvoiceLiters)
	assert.True(t, first.InvoiceLiters.Equal(dec("3000")), "invoice defaults to the purchase liters")

	tooMuch := dec("500")
	_, err = link("500", &tooMuch)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.True(t, details["remaining_liters"].(decimal.Decimal).IsZero())

	_, err = svc.Reject(ctx, env.Grant(enums.RoleManager), first.ID, "split delivery")
	require.NoError(t, err)

	part := dec("1200")
	second, err := link("1200", &part)
	require.NoError(t, err)
	assert.True(t, second.InvoiceLiters.Equal(dec("1200")))

	over := dec("1801")
	_, err = link("700", &over)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	third, err := link("700", nil)
	require.NoError(t, err)
	assert.True(t, third.InvoiceLiters.Equal(dec("1800")))
}

func TestListUnloads(t *testing.T) {
	env, svc := newUnloads(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, env.Grant(enums.RoleUnloader), CreateInput{TankID: env.Station.Tank.ID, Liters: dec("10"), UnloadedAt: unloadTime})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	page, err := svc.List(ctx, env.Grant(enums.RoleOperator), ListInput{
		GasStationID: env.Station.GasStation.ID,
		Params:       pagination.Params{Limit: 2},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
}
