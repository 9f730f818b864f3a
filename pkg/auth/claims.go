package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	GasStationID *uuid.UUID
	Role         enums.Role
	JTI          string
}

// AccessTokenClaims is the bearer token issued by the identity service. The core
// only reads who is acting, in which role, and for which gas station.
type AccessTokenClaims struct {
	UserID       uuid.UUID  `json:"user_id"`
	GasStationID *uuid.UUID `json:"gas_station_id,omitempty"`
	Role         enums.Role `json:"role"`
	jwt.RegisteredClaims
}
