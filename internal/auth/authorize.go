package auth

import "slices"

// RoleGate admits principals whose role is one of a fixed set.
type RoleGate struct {
	allowed []Role
}

// NewRoleGate builds a gate for the listed roles. An empty list admits nobody.
func NewRoleGate(roles ...Role) RoleGate {
	return RoleGate{allowed: slices.Clone(roles)}
}

// Check returns ErrForbidden unless p holds one of the allowed roles.
// Roles are not hierarchical: an admin passes only if admin is listed.
func (g RoleGate) Check(p Principal) error {
	if slices.Contains(g.allowed, p.Role) {
		return nil
	}
	return ErrForbidden
}

// Allowed returns a copy of the admitted roles.
func (g RoleGate) Allowed() []Role {
	return slices.Clone(g.allowed)
}
