package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Role is a named capability from a closed set.
type Role string

// RoleAdmin grants user, event and audit administration. Users without it are members.
const RoleAdmin Role = "admin"

var allowedRoles = map[Role]struct{}{
	RoleAdmin: {},
}

// AllowedRoles lists every assignable role.
func AllowedRoles() []Role {
	out := make([]Role, 0, len(allowedRoles))
	for r := range allowedRoles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseRole validates a single role name.
func ParseRole(name string) (Role, error) {
	r := Role(strings.TrimSpace(name))
	if _, ok := allowedRoles[r]; !ok {
		return "", fmt.Errorf("%w: invalid role %q, allowed roles: %s", ErrInvalidInput, name, joinRoles(AllowedRoles()))
	}
	return r, nil
}

// ParseRoles validates every name and returns the deduplicated, sorted set. A
// single unknown name fails the whole set.
func ParseRoles(names []string) ([]Role, error) {
	var invalid []string
	seen := make(map[Role]struct{}, len(names))
	out := make([]Role, 0, len(names))
	for _, name := range names {
		r := Role(strings.TrimSpace(name))
		if _, ok := allowedRoles[r]; !ok {
			invalid = append(invalid, name)
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: invalid roles: %s, allowed roles: %s",
			ErrInvalidInput, strings.Join(invalid, ", "), joinRoles(AllowedRoles()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func joinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
