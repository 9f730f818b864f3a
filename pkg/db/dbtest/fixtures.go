package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// Epoch is when seeded master data was created; events in tests happen after it.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Station is a seeded gas station with one product, one tank and one
// dispensing island whose nozzles all draw from that tank.
type Station struct {
	GasStation models.GasStation
	Product    models.Product
	Tank       models.Tank
	Island     models.Station
	Nozzles    []models.Nozzle
}

// StationOptions overrides the seeded defaults.
type StationOptions struct {
	Capacity      string
	InitialStock  string
	PurchasePrice string
	SellingPrice  string
	Nozzles       int
	OpenTime      string
	CloseTime     string
}

// SeedStation writes a station with a 10,000 L tank holding 8,000 L of a
// product bought at 10,000 and sold at 12,000 per liter.
func SeedStation(t testing.TB, conn *gorm.DB, opts StationOptions) Station {
	t.Helper()
	if opts.Capacity == "" {
		opts.Capacity = "10000"
	}
	if opts.InitialStock == "" {
		opts.InitialStock = "8000"
	}
	if opts.PurchasePrice == "" {
		opts.PurchasePrice = "10000"
	}
	if opts.SellingPrice == "" {
		opts.SellingPrice = "12000"
	}
	if opts.Nozzles == 0 {
		opts.Nozzles = 2
	}
	if opts.OpenTime == "" {
		opts.OpenTime = "05:00"
	}
	if opts.CloseTime == "" {
		opts.CloseTime = "22:00"
	}

	seeded := Station{
		GasStation: models.GasStation{
			ID:        uuid.New(),
			Name:      "SPBU " + uuid.NewString()[:8],
			Timezone:  "Asia/Jakarta",
			OpenTime:  opts.OpenTime,
			CloseTime: opts.CloseTime,
			Lifecycle: enums.LifecycleActive,
			CreatedAt: Epoch,
		},
	}
	mustCreate(t, conn, &seeded.GasStation)

	seeded.Product = models.Product{
		GasStationID:  seeded.GasStation.ID,
		Name:          "Pertalite",
		PurchasePrice: decimal.RequireFromString(opts.PurchasePrice),
		SellingPrice:  decimal.RequireFromString(opts.SellingPrice),
		Lifecycle:     enums.LifecycleActive,
		CreatedAt:     Epoch,
	}
	mustCreate(t, conn, &seeded.Product)

	seeded.Tank = models.Tank{
		GasStationID: seeded.GasStation.ID,
		ProductID:    seeded.Product.ID,
		Name:         "Tank 1",
		Capacity:     decimal.RequireFromString(opts.Capacity),
		InitialStock: decimal.RequireFromString(opts.InitialStock),
		Lifecycle:    enums.LifecycleActive,
		CreatedAt:    Epoch,
	}
	mustCreate(t, conn, &seeded.Tank)

	seeded.Island = models.Station{
		GasStationID: seeded.GasStation.ID,
		Code:         "ISL-1",
		Name:         "Island 1",
		Lifecycle:    enums.LifecycleActive,
		CreatedAt:    Epoch,
	}
	mustCreate(t, conn, &seeded.Island)

	for i := 0; i < opts.Nozzles; i++ {
		nozzle := models.Nozzle{
			StationID: seeded.Island.ID,
			TankID:    seeded.Tank.ID,
			Code:      string(rune('A' + i)),
			Lifecycle: enums.LifecycleActive,
			CreatedAt: Epoch,
		}
		mustCreate(t, conn, &nozzle)
		seeded.Nozzles = append(seeded.Nozzles, nozzle)
	}
	return seeded
}

// COA writes an active account.
func COA(t testing.TB, conn *gorm.DB, gasStationID uuid.UUID, name string, category enums.COACategory) models.COA {
	t.Helper()
	coa := models.COA{
		GasStationID: gasStationID,
		Name:         name,
		Category:     category,
		Status:       enums.LifecycleActive,
	}
	mustCreate(t, conn, &coa)
	return coa
}

func mustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
