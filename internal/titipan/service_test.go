package titipan

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/internal/servicetest"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

var fillTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTitipan(t *testing.T) (*servicetest.Env, Service) {
	t.Helper()
	env := servicetest.New(t, dbtest.StationOptions{InitialStock: "6000"})
	svc, err := NewService(NewRepository(env.Conn), env.Client, env.Inventory, env.Ledger, env.Outbox, env.Logger, nil)
	require.NoError(t, err)
	return env, svc
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCreateAccountOpensLiability(t *testing.T) {
	env, svc := newTitipan(t)
	ctx := context.Background()
	owner := env.Grant(enums.RoleOwner)

	account, err := svc.CreateAccount(ctx, owner, CreateAccountInput{GasStationID: env.Station.GasStation.ID, Name: "PT Tani Makmur"})
	require.NoError(t, err)

	coas, err := env.Ledger.ListCOA(ctx, owner, env.Station.GasStation.ID, false)
	require.NoError(t, err)
	var found bool
	for _, coa := range coas {
		if coa.ID == account.COAID {
			found = true
			assert.Equal(t, ledger.TitipanPayable("PT Tani Makmur").Name, coa.Name)
			assert.Equal(t, enums.COALiability, coa.Category)
			assert.True(t, coa.System)
		}
	}
	assert.True(t, found)

	_, err = svc.CreateAccount(ctx, owner, CreateAccountInput{GasStationID: env.Station.GasStation.ID, Name: "PT Tani Makmur"})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestApproveFillPostsConsignment(t *testing.T) {
	env, svc := newTitipan(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, env.Grant(enums.RoleOwner), CreateAccountInput{GasStationID: env.Station.GasStation.ID, Name: "Koperasi"})
	require.NoError(t, err)
	fill, err := svc.CreateFill(ctx, env.Grant(enums.RoleUnloader), CreateFillInput{
		TankID:           env.Station.Tank.ID,
		TitipanAccountID: account.ID,
		Liters:           dec("1000"),
		FilledAt:         fillTime,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ApprovalPending, fill.Status)
	assert.True(t, env.Stock(t, fillTime.Add(time.Hour)).Equal(dec("6000")))

	approved, err := svc.ApproveFill(ctx, env.Grant(enums.RoleManager), fill.ID)
	require.NoError(t, err)
	require.NotNil(t, approved.TransactionID)
	assert.True(t, env.Stock(t, fillTime.Add(time.Hour)).Equal(dec("7000")))

	txn, err := env.Ledger.Get(ctx, env.Grant(enums.RoleOwner), *approved.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionAdjustment, txn.Type)
	require.NotNil(t, txn.ReferenceType)
	assert.Equal(t, ReferenceTitipanFill, *txn.ReferenceType)
	assert.Equal(t, "10000000.00", env.COABalance(t, ledger.FuelInventory("Pertalite").Name).StringFixed(2))
	assert.Equal(t, "10000000.00", env.COABalance(t, ledger.TitipanPayable("Koperasi").Name).StringFixed(2))

	_, err = svc.ApproveFill(ctx, env.Grant(enums.RoleManager), fill.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Len(t, env.Events(t, fill.ID), 1)
}

func TestCreateFillOverCapacity(t *testing.T) {
	env, svc := newTitipan(t)
	ctx := context.Background()
	account, err := svc.CreateAccount(ctx, env.Grant(enums.RoleOwner), CreateAccountInput{GasStationID: env.Station.GasStation.ID, Name: "Koperasi"})
	require.NoError(t, err)

	_, err = svc.CreateFill(ctx, env.Grant(enums.RoleUnloader), CreateFillInput{
		TankID:           env.Station.Tank.ID,
		TitipanAccountID: account.ID,
		Liters:           dec("4000.5"),
		FilledAt:         fillTime,
	})
	assert.Equal(t, pkgerrors.CodeCapacity, pkgerrors.As(err).Code())
}

func TestBackdatedFillChecksCurrentStock(t *testing.T) {
	env, svc := newTitipan(t)
	ctx := context.Background()
	account, err := svc.CreateAccount(ctx, env.Grant(enums.RoleOwner), CreateAccountInput{GasStationID: env.Station.GasStation.ID, Name: "Koperasi"})
	require.NoError(t, err)
	unloader := env.Grant(enums.RoleUnloader)

	fill, err := svc.CreateFill(ctx, unloader, CreateFillInput{TankID: env.Station.Tank.ID, TitipanAccountID: account.ID, Liters: dec("3000"), FilledAt: fillTime})
	require.NoError(t, err)
	_, err = svc.ApproveFill(ctx, env.Grant(enums.RoleManager), fill.ID)
	require.NoError(t, err)

	_, err = svc.CreateFill(ctx, unloader, CreateFillInput{TankID: env.Station.Tank.ID, TitipanAccountID: account.ID, Liters: dec("1500"), FilledAt: fillTime.Add(-2 * time.Hour)})
	assert.Equal(t, pkgerrors.CodeCapacity, pkgerrors.As(err).Code())

	_, err = svc.CreateFill(ctx, unloader, CreateFillInput{TankID: env.Station.Tank.ID, TitipanAccountID: account.ID, Liters: dec("100"), FilledAt: dbtest.Epoch})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Message(), "filled_at")
}

func TestRejectFill(t *testing.T) {
	env, svc := newTitipan(t)
	ctx := context.Background()
	account, err := svc.CreateAccount(ctx, env.Grant(enums.RoleOwner), CreateAccountInput{GasStationID: env.Station.GasStation.ID, Name: "Koperasi"})
	require.NoError(t, err)
	fill, err := svc.CreateFill(ctx, env.Grant(enums.RoleUnloader), CreateFillInput{
		TankID:           env.Station.Tank.ID,
		TitipanAccountID: account.ID,
		Liters:           dec("500"),
		FilledAt:         fillTime,
	})
	require.NoError(t, err)

	rejected, err := svc.RejectFill(ctx, env.Grant(enums.RoleOwner), fill.ID, "no delivery note")
	require.NoError(t, err)
	assert.Equal(t, enums.ApprovalRejected, rejected.Status)
	assert.Nil(t, rejected.TransactionID)
	assert.True(t, env.Stock(t, fillTime.Add(time.Hour)).Equal(dec("6000")))

	list, err := svc.ListFills(ctx, env.Grant(enums.RoleOperator), ListFillsInput{GasStationID: env.Station.GasStation.ID})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}
