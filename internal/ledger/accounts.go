package ledger

import "github.com/angelmondragon/fuelstation-backend/pkg/enums"

// SystemAccount names an account the orchestrators create on first use.
type SystemAccount struct {
	Name     string
	Category enums.COACategory
}

// RealtimeProfitLossName is the equity account closing transfers are posted against.
const RealtimeProfitLossName = "Realtime Profit/Loss"

var (
	UnloadShrinkage    = SystemAccount{Name: "Unload Shrinkage", Category: enums.COAExpense}
	FuelShrinkage      = SystemAccount{Name: "Fuel Shrinkage", Category: enums.COAExpense}
	FuelSurplus        = SystemAccount{Name: "Fuel Surplus", Category: enums.COARevenue}
	PumpTestExpense    = SystemAccount{Name: "Pump Test", Category: enums.COAExpense}
	CashShortage       = SystemAccount{Name: "Cash Shortage", Category: enums.COAExpense}
	CashOverage        = SystemAccount{Name: "Cash Overage", Category: enums.COARevenue}
	RealtimeProfitLoss = SystemAccount{Name: RealtimeProfitLossName, Category: enums.COAEquity}
)

// FuelInventory is the asset account holding a product's stock at cost.
func FuelInventory(product string) SystemAccount {
	return SystemAccount{Name: "Fuel Inventory - " + product, Category: enums.COAAsset}
}

// FuelSales is the revenue account for a product.
func FuelSales(product string) SystemAccount {
	return SystemAccount{Name: "Fuel Sales - " + product, Category: enums.COARevenue}
}

// CostOfSales is the COGS account for a product.
func CostOfSales(product string) SystemAccount {
	return SystemAccount{Name: "COGS - " + product, Category: enums.COACOGS}
}

// TitipanPayable is the liability owed to a consignment owner.
func TitipanPayable(owner string) SystemAccount {
	return SystemAccount{Name: "Titipan - " + owner, Category: enums.COALiability}
}
