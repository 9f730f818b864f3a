package enums

import "fmt"

// COACategory determines the balance convention of an account.
type COACategory string

const (
	COAAsset     COACategory = "ASSET"
	COALiability COACategory = "LIABILITY"
	COAEquity    COACategory = "EQUITY"
	COARevenue   COACategory = "REVENUE"
	COAExpense   COACategory = "EXPENSE"
	COACOGS      COACategory = "COGS"
)

var validCOACategories = []COACategory{
	COAAsset,
	COALiability,
	COAEquity,
	COARevenue,
	COAExpense,
	COACOGS,
}

// IsValid reports whether the value matches a known category.
func (c COACategory) IsValid() bool {
	for _, candidate := range validCOACategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// DebitNormal reports whether balance = debit - credit for the category.
func (c COACategory) DebitNormal() bool {
	switch c {
	case COAAsset, COAExpense, COACOGS:
		return true
	default:
		return false
	}
}

// ParseCOACategory converts raw input into COACategory.
func ParseCOACategory(value string) (COACategory, error) {
	for _, candidate := range validCOACategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coa category %q", value)
}
