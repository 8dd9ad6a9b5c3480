package domain

import "strings"

// Role is the coarse authorization tier carried by a verified caller identity.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ParseRole normalises textual input into a known role, defaulting to the
// unprivileged user role.
func ParseRole(value string) Role {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleManager):
		return RoleManager
	default:
		return RoleUser
	}
}

// IsPrivileged reports whether the role bypasses the permission gate and may
// act on behalf of other users.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleManager
}

// Actor is the resolved, verified caller identity attached to every request
// by the external auth layer.
type Actor struct {
	ID   string
	Role Role
}
