// Package servicetest assembles the shared collaborators orchestrator tests
// run against: one sqlite database, the ledger, the stock calculator and the
// outbox.
package servicetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/inventory"
	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/pkg/db"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
)

// Env is one seeded gas station and the services bound to its database.
type Env struct {
	Conn       *gorm.DB
	Client     *db.Client
	Station    dbtest.Station
	Ledger     ledger.Service
	Inventory  inventory.Service
	Outbox     *outbox.Service
	OutboxRepo *outbox.Repository
	Logger     *logger.Logger
}

// New seeds a station with opts and wires the collaborators.
func New(t *testing.T, opts dbtest.StationOptions) *Env {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logger.Nop())

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), client, emitter, logger.Nop(), nil, decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	inv, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	return &Env{
		Conn:       conn,
		Client:     client,
		Station:    dbtest.SeedStation(t, conn, opts),
		Ledger:     ledgerSvc,
		Inventory:  inv,
		Outbox:     emitter,
		OutboxRepo: outboxRepo,
		Logger:     logger.Nop(),
	}
}

// Grant resolves every capability of role scoped to the seeded station.
func (e *Env) Grant(role enums.Role) access.Grant {
	gsID := e.Station.GasStation.ID
	return access.GrantAll(access.Actor{UserID: uuid.New(), Role: role, GasStationID: &gsID})
}

// Stock is the tank's derived stock at the given instant.
func (e *Env) Stock(t *testing.T, at time.Time) decimal.Decimal {
	t.Helper()
	tank, err := e.Inventory.FindTank(context.Background(), nil, e.Station.Tank.ID)
	if err != nil {
		t.Fatalf("find tank: %v", err)
	}
	stock, err := e.Inventory.Stock(context.Background(), nil, tank, at.UTC(), nil)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	return stock
}

// COABalance is the signed balance of the named account, zero when it does
// not exist yet.
func (e *Env) COABalance(t *testing.T, name string) decimal.Decimal {
	t.Helper()
	var coa models.COA
	err := e.Conn.Where("gas_station_id = ? AND name = ?", e.Station.GasStation.ID, name).First(&coa).Error
	if err != nil {
		return decimal.Zero
	}
	balance, err := e.Ledger.Balance(context.Background(), e.Grant(enums.RoleOwner), coa.ID)
	if err != nil {
		t.Fatalf("balance %s: %v", name, err)
	}
	return balance.Balance
}

// CountTransactions counts ledger transactions of the station.
func (e *Env) CountTransactions(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := e.Conn.Model(&models.Transaction{}).Where("gas_station_id = ?", e.Station.GasStation.ID).Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return count
}

// Events lists outbox events written for aggregateID.
func (e *Env) Events(t *testing.T, aggregateID uuid.UUID) []models.OutboxEvent {
	t.Helper()
	events, err := e.OutboxRepo.ListForAggregate(context.Background(), aggregateID)
	if err != nil {
		t.Fatalf("list outbox events: %v", err)
	}
	return events
}
