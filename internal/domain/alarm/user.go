package alarm

import (
	"strings"
	"time"
)

// Role is the authorisation level of a user.
type Role string

const (
	// RoleAdministrator may manage users and modules.
	RoleAdministrator Role = "administrator"
	// RoleOperator may acknowledge and deactivate alarms.
	RoleOperator Role = "operator"
	// RoleViewer may only read state.
	RoleViewer Role = "viewer"
)

// ParseRole normalises s and reports whether it is a known role.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))

	switch role {
	case RoleAdministrator, RoleOperator, RoleViewer:
		return role, true
	default:
		return role, false
	}
}

// User is an account able to operate the controller.
// The credential hash is never exposed outside the ledger.
type User struct {
	ID                   int64     `json:"id"`
	Username             string    `json:"username"`
	Role                 Role      `json:"role"`
	CreatedAt            time.Time `json:"created_at"`
	MustChangeCredential bool      `json:"must_change_credential"`
}
