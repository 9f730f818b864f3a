// Package approval is the PENDING -> APPROVED | REJECTED state machine shared by
// unloads, titipan fills, tank readings, deposits and ledger transactions.
// Callers load the record under a row lock and call Decide inside the same
// transaction that applies the side effects.
package approval

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

// Record kinds used in conflict details and metrics labels.
const (
	RecordUnload      = "unload"
	RecordTitipanFill = "titipan_fill"
	RecordTankReading = "tank_reading"
	RecordDeposit     = "deposit"
	RecordTransaction = "transaction"
)

// Decision is an accepted transition ready to be written.
type Decision struct {
	Status    enums.ApprovalStatus
	DecidedBy uuid.UUID
	DecidedAt time.Time
}

// Decide validates current -> target for one record. Anything but a PENDING
// record moving to a terminal status is a STATE_CONFLICT, including a second
// approval of an already approved record.
func Decide(record string, id uuid.UUID, current, target enums.ApprovalStatus, by uuid.UUID, at time.Time) (Decision, error) {
	if !target.IsTerminal() {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "approval status must be APPROVED or REJECTED").
			WithDetails(map[string]any{"status": target})
	}
	if by == uuid.Nil {
		return Decision{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if current != enums.ApprovalPending {
		return Decision{}, pkgerrors.New(pkgerrors.CodeStateConflict, record+" is already "+string(current)).
			WithDetails(map[string]any{
				"record":    record,
				"id":        id,
				"current":   current,
				"attempted": target,
			})
	}
	return Decision{Status: target, DecidedBy: by, DecidedAt: at.UTC()}, nil
}

// Updates is the column set written for the decision. Rejections record the
// decider in approved_by as well.
func (d Decision) Updates() map[string]any {
	return map[string]any{
		"status":      d.Status,
		"approved_by": d.DecidedBy,
		"approved_at": d.DecidedAt,
	}
}

// Approved reports whether the decision triggers side effects.
func (d Decision) Approved() bool {
	return d.Status == enums.ApprovalApproved
}

// EventType picks the outbox event for a decided record.
func (d Decision) EventType(approved, rejected enums.OutboxEventType) enums.OutboxEventType {
	if d.Approved() {
		return approved
	}
	return rejected
}
