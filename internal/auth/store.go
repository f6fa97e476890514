package auth

import (
	"context"
	"time"
)

// Store exposes the persistence needed by the auth service.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Sessions() SessionStore
	EmailTokens() EmailTokenStore
}

// UserStore persists users. Create, Register and Update write the user and its
// roles as one unit. Delete removes the user's roles, sessions, email tokens and
// assignments, and clears its id from audit entries.
type UserStore interface {
	// Register inserts u and grants it bootstrap only if no other user exists.
	// It returns the roles actually granted.
	Register(ctx context.Context, u User, bootstrap []Role) ([]Role, error)
	Create(ctx context.Context, u User, roles []Role) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u User, roles []Role) error
	Delete(ctx context.Context, id string) error
}

// RoleStore persists (user, role) pairs.
type RoleStore interface {
	ForUser(ctx context.Context, userID string) ([]Role, error)
	All(ctx context.Context) (map[string][]Role, error)
	Add(ctx context.Context, userID string, role Role) error
	Replace(ctx context.Context, userID string, roles []Role) error
}

// SessionStore persists sessions keyed by secret digest.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	GetWithUser(ctx context.Context, id string) (Session, User, error)
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// EmailTokenStore persists pending email tokens keyed by secret digest.
type EmailTokenStore interface {
	// Create stores t, replacing any token with the same id.
	Create(ctx context.Context, t EmailToken) error
	// Consume deletes the token and returns it. Of several concurrent callers
	// for the same id at most one succeeds; the others get ErrNotFound.
	Consume(ctx context.Context, id string) (EmailToken, error)
}
