package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

func actorFor(role enums.Role, station uuid.UUID) Actor {
	return Actor{UserID: uuid.New(), Role: role, GasStationID: &station}
}

func TestResolveMatrix(t *testing.T) {
	station := uuid.New()
	cases := []struct {
		role    enums.Role
		cap     Capability
		allowed bool
	}{
		{enums.RoleUnloader, CapUnloadCreate, true},
		{enums.RoleUnloader, CapUnloadApprove, false},
		{enums.RoleManager, CapUnloadApprove, true},
		{enums.RoleOperator, CapShiftOperate, true},
		{enums.RoleOperator, CapShiftEdit, false},
		{enums.RoleFinance, CapShiftEdit, true},
		{enums.RoleManager, CapAdjustmentCreate, false},
		{enums.RoleOwner, CapAdjustmentCreate, false},
		{enums.RoleAdmin, CapAdjustmentCreate, true},
	}
	for _, tc := range cases {
		got := Resolve(actorFor(tc.role, station), tc.cap)
		assert.Equalf(t, tc.allowed, got.Allowed, "%s %s", tc.role, tc.cap)
	}
}

func TestAdminScopeAll(t *testing.T) {
	grant := NewGrant(Actor{UserID: uuid.New(), Role: enums.RoleAdmin}, CapReportView)
	require.Equal(t, ScopeAll, grant.Decision(CapReportView).Scope)
	require.True(t, grant.Permits(CapReportView, uuid.New()))
}

func TestStationScopedGrant(t *testing.T) {
	station := uuid.New()
	grant := NewGrant(actorFor(enums.RoleManager, station), CapUnloadApprove)

	require.NoError(t, grant.Require(CapUnloadApprove, station))

	err := grant.Require(CapUnloadApprove, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	err = grant.Require(CapDepositApprove, station)
	require.Error(t, err, "unresolved capability must be denied")

	all := GrantAll(actorFor(enums.RoleManager, station))
	assert.NoError(t, all.Require(CapDepositApprove, station))
	assert.Error(t, all.Require(CapAdjustmentCreate, station))
}

func TestResolveRejectsIncompleteActors(t *testing.T) {
	assert.False(t, Resolve(Actor{Role: enums.RoleAdmin}, CapReportView).Allowed)
	assert.False(t, Resolve(Actor{UserID: uuid.New(), Role: enums.RoleManager}, CapReportView).Allowed)
	assert.False(t, Resolve(Actor{UserID: uuid.New(), Role: "GUEST"}, CapReportView).Allowed)
}
