package deposits

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/internal/inventory"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
)

// ProductSales is what one product dispensed during a shift.
type ProductSales struct {
	ProductID     uuid.UUID       `json:"product_id"`
	Name          string          `json:"name"`
	Liters        decimal.Decimal `json:"liters"`
	PumpTest      decimal.Decimal `json:"pump_test"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
}

// Revenue is the sold liters at the selling price.
func (p ProductSales) Revenue() decimal.Decimal {
	return p.Liters.Mul(p.SellingPrice).Round(2)
}

// Cost is the sold liters at the purchase price.
func (p ProductSales) Cost() decimal.Decimal {
	return p.Liters.Mul(p.PurchasePrice).Round(2)
}

// PumpTestCost is the calibration volume at the purchase price.
func (p ProductSales) PumpTestCost() decimal.Decimal {
	return p.PumpTest.Mul(p.PurchasePrice).Round(2)
}

// salesByProduct pairs a shift's readings per nozzle and totals them per
// product, ordered by product name.
func salesByProduct(shiftID uuid.UUID, rows []SaleRow) []ProductSales {
	grouped := make(map[uuid.UUID][]inventory.ShiftNozzleReading)
	products := make(map[uuid.UUID]ProductSales)
	for _, row := range rows {
		grouped[row.ProductID] = append(grouped[row.ProductID], inventory.ShiftNozzleReading{
			ShiftID:   shiftID,
			NozzleID:  row.NozzleID,
			Type:      row.Type,
			Totalizer: row.Totalizer,
			PumpTest:  row.PumpTest,
		})
		products[row.ProductID] = ProductSales{
			ProductID:     row.ProductID,
			Name:          row.ProductName,
			SellingPrice:  row.SellingPrice,
			PurchasePrice: row.PurchasePrice,
		}
	}
	out := make([]ProductSales, 0, len(products))
	for id, product := range products {
		product.Liters, product.PumpTest = inventory.SalesOf(grouped[id])
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// expectedRevenue sums revenue across products.
func expectedRevenue(sales []ProductSales) decimal.Decimal {
	total := decimal.Zero
	for _, product := range sales {
		total = total.Add(product.Revenue())
	}
	return total
}

// received sums the deposit's detail lines per account, in first-seen order.
func received(details []models.DepositDetail) ([]uuid.UUID, map[uuid.UUID]decimal.Decimal) {
	order := make([]uuid.UUID, 0, len(details))
	amounts := make(map[uuid.UUID]decimal.Decimal, len(details))
	for _, detail := range details {
		if _, ok := amounts[detail.COAID]; !ok {
			order = append(order, detail.COAID)
			amounts[detail.COAID] = decimal.Zero
		}
		amounts[detail.COAID] = amounts[detail.COAID].Add(detail.Amount)
	}
	return order, amounts
}
