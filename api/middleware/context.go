package middleware

import (
	"context"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
)

type contextKey string

const (
	ctxUserID       contextKey = "user_id"
	ctxRole         contextKey = "actor_role"
	ctxGasStationID contextKey = "gas_station_id"
	ctxGrant        contextKey = "grant"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func GasStationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxGasStationID).(string); ok {
		return v
	}
	return ""
}

// GrantFromContext returns the capabilities resolved for the caller.
func GrantFromContext(ctx context.Context) (access.Grant, bool) {
	if ctx == nil {
		return access.Grant{}, false
	}
	grant, ok := ctx.Value(ctxGrant).(access.Grant)
	return grant, ok
}

// WithGrant seeds the context with a resolved grant and the actor it belongs to.
func WithGrant(ctx context.Context, grant access.Grant) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxGrant, grant)
	ctx = context.WithValue(ctx, ctxUserID, grant.Actor.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(grant.Actor.Role))
	if grant.Actor.GasStationID != nil {
		ctx = context.WithValue(ctx, ctxGasStationID, grant.Actor.GasStationID.String())
	}
	return ctx
}
