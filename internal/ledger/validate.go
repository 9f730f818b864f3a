package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// EntryInput is one requested journal line.
type EntryInput struct {
	COAID       uuid.UUID       `json:"coa_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// Totals is the debit and credit sum of an entry set.
type Totals struct {
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// Balanced reports whether debit and credit agree within tolerance.
func (t Totals) Balanced(tolerance decimal.Decimal) bool {
	return t.Debit.Sub(t.Credit).Abs().LessThanOrEqual(tolerance)
}

// CheckEntries applies the shape rules to an entry set: it is non-empty, every
// line carries exactly one positive side and the sides balance. Every problem
// found is returned, combined.
func CheckEntries(entries []EntryInput, tolerance decimal.Decimal) (Totals, error) {
	totals := Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	if len(entries) == 0 {
		return totals, fmt.Errorf("at least one journal entry is required")
	}

	var errs error
	for i, entry := range entries {
		if entry.COAID == uuid.Nil {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: coa id is required", i))
		}
		if entry.Debit.IsNegative() || entry.Credit.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: amounts must not be negative", i))
			continue
		}
		debit, credit := entry.Debit.IsPositive(), entry.Credit.IsPositive()
		switch {
		case debit && credit:
			errs = multierr.Append(errs, fmt.Errorf("entry %d: debit and credit are both set", i))
		case !debit && !credit:
			errs = multierr.Append(errs, fmt.Errorf("entry %d: debit or credit must be positive", i))
		}
		totals.Debit = totals.Debit.Add(entry.Debit)
		totals.Credit = totals.Credit.Add(entry.Credit)
	}
	if errs == nil && !totals.Balanced(tolerance) {
		errs = fmt.Errorf("debit %s does not equal credit %s", totals.Debit.StringFixed(2), totals.Credit.StringFixed(2))
	}
	return totals, errs
}

// checkAccounts verifies that every referenced account exists, belongs to the
// gas station and is ACTIVE.
func checkAccounts(entries []EntryInput, gasStationID uuid.UUID, accounts []models.COA) error {
	byID := make(map[uuid.UUID]models.COA, len(accounts))
	for _, coa := range accounts {
		byID[coa.ID] = coa
	}
	var errs error
	for i, entry := range entries {
		coa, ok := byID[entry.COAID]
		switch {
		case !ok:
			errs = multierr.Append(errs, fmt.Errorf("entry %d: coa %s not found", i, entry.COAID))
		case coa.GasStationID != gasStationID:
			errs = multierr.Append(errs, fmt.Errorf("entry %d: coa %s belongs to another gas station", i, entry.COAID))
		case coa.Status != enums.LifecycleActive:
			errs = multierr.Append(errs, fmt.Errorf("entry %d: coa %q is retired", i, coa.Name))
		}
	}
	return errs
}

func problems(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func entryIDs(entries []EntryInput) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(entries))
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.COAID]; ok || entry.COAID == uuid.Nil {
			continue
		}
		seen[entry.COAID] = struct{}{}
		ids = append(ids, entry.COAID)
	}
	return ids
}

func toModels(entries []EntryInput) []models.JournalEntry {
	rows := make([]models.JournalEntry, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, models.JournalEntry{
			COAID:       entry.COAID,
			Debit:       entry.Debit,
			Credit:      entry.Credit,
			Description: entry.Description,
		})
	}
	return rows
}

func fromModels(rows []models.JournalEntry) []EntryInput {
	entries := make([]EntryInput, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, EntryInput{
			COAID:       row.COAID,
			Debit:       row.Debit,
			Credit:      row.Credit,
			Description: row.Description,
		})
	}
	return entries
}

// roundEntries brings amounts to the two decimal places the ledger stores.
func roundEntries(entries []EntryInput) []EntryInput {
	out := make([]EntryInput, len(entries))
	for i, entry := range entries {
		entry.Debit = entry.Debit.Round(2)
		entry.Credit = entry.Credit.Round(2)
		out[i] = entry
	}
	return out
}
