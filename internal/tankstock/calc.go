// Package tankstock holds the side-effect-free tank arithmetic shared by the
// approval paths and the reconciliation report.
package tankstock

import "github.com/shopspring/decimal"

// StockByCalculation returns stockOpen + unloads - (sales + pumpTest). The
// result is never clamped; a negative value is an oversell to be flagged.
func StockByCalculation(stockOpen, unloads, sales, pumpTest decimal.Decimal) decimal.Decimal {
	return stockOpen.Add(unloads).Sub(sales.Add(pumpTest))
}

// SalesFromReadings returns the dispensed volume between two totalizer values,
// clamped at zero. Writers reject close < open before reaching this point.
func SalesFromReadings(open, close, pumpTest decimal.Decimal) decimal.Decimal {
	sold := close.Sub(open).Sub(pumpTest)
	if sold.IsNegative() {
		return decimal.Zero
	}
	return sold
}

// VarianceOpen compares today's opening stock with yesterday's closing dip,
// falling back to yesterday's calculated stock. Nil on the first day.
func VarianceOpen(stockOpenToday decimal.Decimal, closeYesterday, calculatedYesterday *decimal.Decimal) *decimal.Decimal {
	base := closeYesterday
	if base == nil {
		base = calculatedYesterday
	}
	if base == nil {
		return nil
	}
	v := stockOpenToday.Sub(*base)
	return &v
}

// Variance is reading - stockRealtime, nil when nothing was measured.
func Variance(reading *decimal.Decimal, stockRealtime decimal.Decimal) *decimal.Decimal {
	if reading == nil {
		return nil
	}
	v := reading.Sub(stockRealtime)
	return &v
}

// EstimatedLoss returns |variance| for a negative variance and nil otherwise.
func EstimatedLoss(variance *decimal.Decimal) *decimal.Decimal {
	if variance == nil || !variance.IsNegative() {
		return nil
	}
	loss := variance.Abs()
	return &loss
}

// Headroom is the volume a tank can still take.
func Headroom(capacity, stock decimal.Decimal) decimal.Decimal {
	return capacity.Sub(stock)
}

// FitsCapacity reports whether adding liters keeps stock within capacity.
func FitsCapacity(capacity, stock, liters decimal.Decimal) bool {
	return stock.Add(liters).LessThanOrEqual(capacity)
}
