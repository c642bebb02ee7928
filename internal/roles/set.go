package roles

import (
	"sort"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"
)

// Set is the roles attached to a resolved caller. It is immutable; every
// resolved caller implicitly holds domain.RoleUser.
type Set struct {
	roles map[domain.Role]struct{}
}

func NewSet(rs ...domain.Role) Set {
	m := make(map[domain.Role]struct{}, len(rs)+1)
	m[domain.RoleUser] = struct{}{}
	for _, r := range rs {
		m[r] = struct{}{}
	}
	return Set{roles: m}
}

func (s Set) Has(r domain.Role) bool {
	_, ok := s.roles[r]
	return ok
}

// Satisfies reports whether the set meets a requirement. Admin meets all of them.
func (s Set) Satisfies(required domain.Role) bool {
	return s.Has(domain.RoleAdmin) || s.Has(required)
}

// Primary is the highest role held.
func (s Set) Primary() domain.Role {
	switch {
	case s.Has(domain.RoleAdmin):
		return domain.RoleAdmin
	case s.Has(domain.RoleMod):
		return domain.RoleMod
	case s.Has(domain.RoleUser):
		return domain.RoleUser
	default:
		return ""
	}
}

func (s Set) Roles() []domain.Role {
	out := make([]domain.Role, 0, len(s.roles))
	for r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Set) Empty() bool { return len(s.roles) == 0 }
