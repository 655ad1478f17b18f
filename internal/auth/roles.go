package auth

import (
	"errors"
	"strings"
)

// Role is a user's clinic role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleNurse   Role = "nurse"
	RoleDoctor  Role = "doctor"
	RoleStudent Role = "student"
)

// ErrUnknownRole is returned when a role name is not recognised.
var ErrUnknownRole = errors.New("auth: unknown role")

// ParseRole normalises a role name.
func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleNurse, RoleDoctor, RoleStudent:
		return r, nil
	}
	return "", ErrUnknownRole
}

// Staff reports whether the role belongs to clinic personnel.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleNurse || r == RoleDoctor
}

// Principal is the authenticated caller.
type Principal struct {
	UserID int64  `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// HasRole reports whether the principal holds any of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
