package models

import (
	"sort"
	"strings"

	dErrors "beacon/pkg/domain-errors"
	pstrings "beacon/pkg/platform/strings"
)

// Role is a permission tag on a contact.
type Role string

const (
	// RoleSubscriber receives broadcasts.
	RoleSubscriber Role = "SUBSCRIBER"
	// RoleStaff may originate broadcasts.
	RoleStaff Role = "STAFF"
	// RoleAdmin may originate broadcasts and receives escalated traffic.
	RoleAdmin Role = "ADMIN"
)

// roleAliases maps accepted tokens to canonical roles. SUPERVISOR is the
// historical name of ADMIN and is folded into it.
var roleAliases = map[string]Role{
	"SUBSCRIBER": RoleSubscriber,
	"STAFF":      RoleStaff,
	"ADMIN":      RoleAdmin,
	"SUPERVISOR": RoleAdmin,
}

// ParseRole validates a single role token, case-insensitively.
func ParseRole(s string) (Role, error) {
	if r, ok := roleAliases[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidRole, "invalid role: "+s)
}

// ParseRoles validates every token and returns a deduplicated, sorted set.
// Any unknown token rejects the whole list.
func ParseRoles(tokens []string) (Roles, error) {
	cleaned := pstrings.DedupeAndTrimUpper(tokens)
	seen := make(map[Role]struct{}, len(cleaned))
	roles := make(Roles, 0, len(cleaned))
	for _, tok := range cleaned {
		r, err := ParseRole(tok)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles, nil
}

// Roles is an unordered role set. Order carries no meaning; constructors keep
// it sorted so stored values compare cleanly.
type Roles []Role

// Has reports whether the set contains role.
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// CanOriginate reports whether the holder may start a broadcast.
func (rs Roles) CanOriginate() bool {
	return rs.Has(RoleStaff) || rs.Has(RoleAdmin)
}

// Strings returns the roles as plain strings for persistence.
func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// RolesFromStrings rebuilds a set read back from a store. Unknown values are
// dropped rather than failing the read.
func RolesFromStrings(values []string) Roles {
	roles, err := ParseRoles(values)
	if err == nil {
		return roles
	}
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if _, err := ParseRole(v); err == nil {
			kept = append(kept, v)
		}
	}
	roles, _ = ParseRoles(kept)
	return roles
}
