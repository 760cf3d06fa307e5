package domain

import (
	"encoding/json"
	"fmt"
)

// Role enumerates the principal kinds of the marketplace.
type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// ParseRole converts a raw string into a known Role.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser, RoleVendor, RoleAdmin:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// RoleSet is a de-duplicated list of roles held by a principal.
type RoleSet []Role

// NewRoleSet builds a RoleSet, dropping duplicates while preserving order.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, 0, len(roles))
	for _, role := range roles {
		if !set.Has(role) {
			set = append(set, role)
		}
	}
	return set
}

// ParseRoleSet validates every raw role string.
func ParseRoleSet(raw []string) (RoleSet, error) {
	roles := make([]Role, 0, len(raw))
	for _, r := range raw {
		role, err := ParseRole(r)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return NewRoleSet(roles...), nil
}

// Has reports exact membership. No role implies another.
func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Strings returns the raw role names, suitable for storage.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// UnmarshalJSON rejects unknown role names so they never reach an authorization check.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRoleSet(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
