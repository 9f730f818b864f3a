package masterdata

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateGasStationInput creates a tenant. Empty hours fall back to the
// configured station defaults.
type CreateGasStationInput struct {
	Name      string
	Timezone  string
	OpenTime  string
	CloseTime string
}

type CreateProductInput struct {
	GasStationID  uuid.UUID
	Name          string
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
}

// UpdateProductPricesInput changes prices used by postings created afterwards.
type UpdateProductPricesInput struct {
	PurchasePrice *decimal.Decimal
	SellingPrice  *decimal.Decimal
}

type CreateTankInput struct {
	GasStationID uuid.UUID
	ProductID    uuid.UUID
	Name         string
	Capacity     decimal.Decimal
	InitialStock decimal.Decimal
}

type CreateStationInput struct {
	GasStationID uuid.UUID
	Code         string
	Name         string
}

type CreateNozzleInput struct {
	StationID uuid.UUID
	TankID    uuid.UUID
	Code      string
}

// Kind names a retirable master data record.
type Kind string

const (
	KindGasStation Kind = "gas_station"
	KindProduct    Kind = "product"
	KindTank       Kind = "tank"
	KindStation    Kind = "station"
	KindNozzle     Kind = "nozzle"
)

// ParseKind converts a path segment into Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(value) {
	case KindGasStation, KindProduct, KindTank, KindStation, KindNozzle:
		return Kind(value), true
	}
	return "", false
}
