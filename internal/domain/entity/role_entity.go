package entity

import "strings"

// Role represents an authorization role.
// Only the values declared below are valid; anything else is rejected at the edges.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles lists every known role in a stable order.
var Roles = []Role{RoleUser, RoleAdmin}

func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// ParseRole maps user input to a Role. An empty string yields RoleUser.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RoleUser, true
	}
	r := Role(s)
	return r, r.Valid()
}

// RoleSet is a fixed allow-set of roles, declared when a route is registered.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Allows reports whether r is a member of the set.
func (s RoleSet) Allows(r Role) bool {
	_, ok := s[r]
	return ok
}
