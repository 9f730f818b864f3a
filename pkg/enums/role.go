package enums

import (
	"fmt"
	"strings"
)

// Role is the opaque role code supplied by the identity collaborator.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOwner    Role = "OWNER"
	RoleManager  Role = "MANAGER"
	RoleFinance  Role = "FINANCE"
	RoleUnloader Role = "UNLOADER"
	RoleOperator Role = "OPERATOR"
)

var validRoles = []Role{
	RoleAdmin,
	RoleOwner,
	RoleManager,
	RoleFinance,
	RoleUnloader,
	RoleOperator,
}

// IsValid reports whether the value matches a known role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into Role. Matching is case-insensitive.
func ParseRole(value string) (Role, error) {
	normalized := Role(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validRoles {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
