package domain

import "strings"

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleMod   Role = "Mod"
	RoleUser  Role = "User"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMod, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole matches role names case-insensitively.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range []Role{RoleAdmin, RoleMod, RoleUser} {
		if strings.EqualFold(s, string(r)) {
			return r, true
		}
	}
	return "", false
}
