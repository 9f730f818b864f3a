package enums

import "fmt"

// TransactionType classifies a ledger transaction header.
type TransactionType string

const (
	TransactionUnload      TransactionType = "UNLOAD"
	TransactionTankReading TransactionType = "TANK_READING"
	TransactionRevenue     TransactionType = "REVENUE"
	TransactionCOGS        TransactionType = "COGS"
	TransactionDeposit     TransactionType = "DEPOSIT"
	TransactionAdjustment  TransactionType = "ADJUSTMENT"
	TransactionCash        TransactionType = "CASH"
	TransactionPurchase    TransactionType = "PURCHASE"
)

var validTransactionTypes = []TransactionType{
	TransactionUnload,
	TransactionTankReading,
	TransactionRevenue,
	TransactionCOGS,
	TransactionDeposit,
	TransactionAdjustment,
	TransactionCash,
	TransactionPurchase,
}

// IsValid reports whether the value matches a known transaction type.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransactionOrigin separates human-entered postings from system-derived ones.
type TransactionOrigin string

const (
	OriginManual TransactionOrigin = "MANUAL"
	OriginAuto   TransactionOrigin = "AUTO"
)

// IsValid reports whether the value matches a known origin.
func (o TransactionOrigin) IsValid() bool {
	return o == OriginManual || o == OriginAuto
}

// CashKind selects the entry layout of a CASH transaction.
type CashKind string

const (
	CashIncome   CashKind = "INCOME"
	CashExpense  CashKind = "EXPENSE"
	CashTransfer CashKind = "TRANSFER"
)

var validCashKinds = []CashKind{CashIncome, CashExpense, CashTransfer}

// IsValid reports whether the value matches a known cash kind.
func (k CashKind) IsValid() bool {
	for _, candidate := range validCashKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCashKind converts raw input into CashKind.
func ParseCashKind(value string) (CashKind, error) {
	for _, candidate := range validCashKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cash kind %q", value)
}
