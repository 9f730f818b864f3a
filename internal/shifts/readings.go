package shifts

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fuelstation-backend/internal/inventory"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// ReadingInput is one nozzle's totalizer in a bulk entry. PumpTest is the
// volume dispensed for calibration and only applies to CLOSE readings.
type ReadingInput struct {
	NozzleID  uuid.UUID       `json:"nozzle_id"`
	Totalizer decimal.Decimal `json:"totalizer"`
	PumpTest  decimal.Decimal `json:"pump_test"`
}

// checkBatch applies the shape rules of a bulk entry against the station's
// active nozzles. Every problem found is returned, combined.
func checkBatch(readingType enums.ReadingType, inputs []ReadingInput, nozzles []models.Nozzle) error {
	if len(inputs) == 0 {
		return fmt.Errorf("at least one reading is required")
	}
	active := make(map[uuid.UUID]string, len(nozzles))
	for _, nozzle := range nozzles {
		active[nozzle.ID] = nozzle.Code
	}
	seen := make(map[uuid.UUID]struct{}, len(inputs))

	var errs error
	for i, input := range inputs {
		if _, ok := active[input.NozzleID]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("reading %d: nozzle %s is not an active nozzle of this station", i, input.NozzleID))
		}
		if _, dup := seen[input.NozzleID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("reading %d: nozzle %s appears twice", i, input.NozzleID))
		}
		seen[input.NozzleID] = struct{}{}
		if input.Totalizer.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("reading %d: totalizer must not be negative", i))
		}
		if input.PumpTest.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("reading %d: pump test must not be negative", i))
		}
		if readingType == enums.ReadingOpen && input.PumpTest.IsPositive() {
			errs = multierr.Append(errs, fmt.Errorf("reading %d: pump test is only recorded on CLOSE", i))
		}
	}
	return errs
}

// checkClose verifies a closing totalizer against its opening one.
func checkClose(code string, open, close, pumpTest decimal.Decimal) error {
	if close.LessThan(open) {
		return fmt.Errorf("nozzle %s: close %s is below open %s", code, close.String(), open.String())
	}
	if pumpTest.GreaterThan(close.Sub(open)) {
		return fmt.Errorf("nozzle %s: pump test %s exceeds dispensed %s", code, pumpTest.String(), close.Sub(open).String())
	}
	return nil
}

// readingsByNozzle indexes a shift's readings of one type.
func readingsByNozzle(readings []models.NozzleReading, readingType enums.ReadingType) map[uuid.UUID]models.NozzleReading {
	out := make(map[uuid.UUID]models.NozzleReading, len(readings))
	for _, reading := range readings {
		if reading.Type == readingType {
			out[reading.NozzleID] = reading
		}
	}
	return out
}

// sold is the clamped sales and pump test volume of a shift's readings.
func sold(shiftID uuid.UUID, readings []models.NozzleReading) (decimal.Decimal, decimal.Decimal) {
	rows := make([]inventory.ShiftNozzleReading, 0, len(readings))
	for _, reading := range readings {
		rows = append(rows, inventory.ShiftNozzleReading{
			ShiftID:   shiftID,
			NozzleID:  reading.NozzleID,
			Type:      reading.Type,
			Totalizer: reading.Totalizer,
			PumpTest:  reading.PumpTest,
		})
	}
	return inventory.SalesOf(rows)
}

func problems(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
