// Package access turns the caller's opaque identity into a typed decision that
// core operations check against the gas station they touch.
package access

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
)

// Actor is the identity supplied by the auth collaborator.
type Actor struct {
	UserID       uuid.UUID
	Role         enums.Role
	GasStationID *uuid.UUID
}

type Capability string

const (
	CapMasterDataView     Capability = "masterdata:view"
	CapMasterDataManage   Capability = "masterdata:manage"
	CapCOAManage          Capability = "coa:manage"
	CapUnloadCreate       Capability = "unload:create"
	CapUnloadApprove      Capability = "unload:approve"
	CapTitipanCreate      Capability = "titipan:create"
	CapTitipanApprove     Capability = "titipan:approve"
	CapTankReadingCreate  Capability = "tank_reading:create"
	CapTankReadingApprove Capability = "tank_reading:approve"
	CapShiftOperate       Capability = "shift:operate"
	CapShiftEdit          Capability = "shift:edit"
	CapDepositCreate      Capability = "deposit:create"
	CapDepositApprove     Capability = "deposit:approve"
	CapTransactionCreate  Capability = "transaction:create"
	CapTransactionApprove Capability = "transaction:approve"
	CapAdjustmentCreate   Capability = "adjustment:create"
	CapReportView         Capability = "report:view"
)

// Scope says which gas stations a granted capability reaches.
type Scope string

const (
	ScopeNone    Scope = "NONE"
	ScopeStation Scope = "STATION"
	ScopeAll     Scope = "ALL"
)

// Decision is the outcome of resolving one capability for one actor.
type Decision struct {
	Allowed bool
	Scope   Scope
}

var roleCapabilities = map[enums.Role][]Capability{
	enums.RoleOwner: {
		CapMasterDataView,
		CapMasterDataManage, CapCOAManage,
		CapUnloadApprove, CapTitipanApprove, CapTankReadingApprove,
		CapDepositApprove, CapTransactionCreate, CapTransactionApprove,
		CapReportView,
	},
	enums.RoleManager: {
		CapMasterDataView,
		CapMasterDataManage,
		CapUnloadApprove, CapTitipanApprove, CapTankReadingApprove,
		CapDepositApprove, CapTransactionCreate, CapTransactionApprove,
		CapReportView,
	},
	enums.RoleFinance: {
		CapMasterDataView,
		CapCOAManage, CapShiftEdit,
		CapDepositCreate, CapDepositApprove,
		CapTransactionCreate, CapReportView,
	},
	enums.RoleUnloader: {
		CapMasterDataView,
		CapUnloadCreate, CapTitipanCreate, CapTankReadingCreate,
	},
	enums.RoleOperator: {
		CapMasterDataView,
		CapShiftOperate, CapTankReadingCreate, CapDepositCreate,
	},
}

// Resolve decides a capability once per request. ADMIN reaches every station;
// other roles reach only the station carried by their token.
func Resolve(actor Actor, capability Capability) Decision {
	if actor.UserID == uuid.Nil || !actor.Role.IsValid() {
		return Decision{Scope: ScopeNone}
	}
	if actor.Role == enums.RoleAdmin {
		return Decision{Allowed: true, Scope: ScopeAll}
	}
	if actor.GasStationID == nil {
		return Decision{Scope: ScopeNone}
	}
	for _, candidate := range roleCapabilities[actor.Role] {
		if candidate == capability {
			return Decision{Allowed: true, Scope: ScopeStation}
		}
	}
	return Decision{Scope: ScopeNone}
}

// AllCapabilities lists every capability, in declaration order.
var AllCapabilities = []Capability{
	CapMasterDataView, CapMasterDataManage, CapCOAManage,
	CapUnloadCreate, CapUnloadApprove,
	CapTitipanCreate, CapTitipanApprove,
	CapTankReadingCreate, CapTankReadingApprove,
	CapShiftOperate, CapShiftEdit,
	CapDepositCreate, CapDepositApprove,
	CapTransactionCreate, CapTransactionApprove,
	CapAdjustmentCreate, CapReportView,
}

// Grant carries the decisions resolved for one request into the core.
type Grant struct {
	Actor     Actor
	decisions map[Capability]Decision
}

// NewGrant resolves each capability for actor.
func NewGrant(actor Actor, capabilities ...Capability) Grant {
	decisions := make(map[Capability]Decision, len(capabilities))
	for _, capability := range capabilities {
		decisions[capability] = Resolve(actor, capability)
	}
	return Grant{Actor: actor, decisions: decisions}
}

// GrantAll resolves every capability for actor.
func GrantAll(actor Actor) Grant {
	return NewGrant(actor, AllCapabilities...)
}

// Decision returns the resolved decision; unresolved capabilities are denied.
func (g Grant) Decision(capability Capability) Decision {
	if decision, ok := g.decisions[capability]; ok {
		return decision
	}
	return Decision{Scope: ScopeNone}
}

// Permits reports whether capability reaches gasStationID.
func (g Grant) Permits(capability Capability, gasStationID uuid.UUID) bool {
	decision := g.Decision(capability)
	if !decision.Allowed {
		return false
	}
	switch decision.Scope {
	case ScopeAll:
		return true
	case ScopeStation:
		return g.Actor.GasStationID != nil && *g.Actor.GasStationID == gasStationID
	default:
		return false
	}
}

// Require returns FORBIDDEN unless capability reaches gasStationID.
func (g Grant) Require(capability Capability, gasStationID uuid.UUID) error {
	if !g.Permits(capability, gasStationID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "operation not permitted").
			WithDetails(map[string]any{
				"capability":     capability,
				"role":           g.Actor.Role,
				"gas_station_id": gasStationID,
			})
	}
	return nil
}

// UserID is the id stamped on records the actor creates or decides.
func (g Grant) UserID() uuid.UUID {
	return g.Actor.UserID
}

// ActorRef stamps outbox events with the acting user.
func (g Grant) ActorRef() *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID:       g.Actor.UserID,
		GasStationID: g.Actor.GasStationID,
		Role:         string(g.Actor.Role),
	}
}
