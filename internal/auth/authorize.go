package auth

import (
	"context"

	"github.com/langalex/henry/internal/audit"
)

// Principal is the user behind a resolved session.
type Principal struct {
	User    User
	Session Session
	Roles   []Role
	// Renewed is set when resolving the session pushed its expiry forward.
	Renewed bool
}

// HasRole reports whether the principal holds r.
func (p Principal) HasRole(r Role) bool {
	for _, have := range p.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// Actor describes the principal for audit entries.
func (p Principal) Actor() *audit.Person {
	return Person(p.User)
}

// Person describes u for audit entries.
func Person(u User) *audit.Person {
	return &audit.Person{ID: u.ID, Name: u.Name, Email: u.Email}
}

// RequireAuthenticated returns the principal on ctx or ErrUnauthenticated.
func RequireAuthenticated(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.User.ID == "" {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// RequireAdmin returns the principal on ctx if it holds the admin role. It fails
// with ErrUnauthenticated when nobody is logged in and ErrForbidden otherwise.
func RequireAdmin(ctx context.Context) (Principal, error) {
	p, err := RequireAuthenticated(ctx)
	if err != nil {
		return Principal{}, err
	}
	if !p.IsAdmin() {
		return Principal{}, ErrForbidden
	}
	return p, nil
}
