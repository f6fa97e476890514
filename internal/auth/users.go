package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/ids"
)

// LookupUser returns a user by id without an authorization check. It backs
// other services that need display identity.
func (s *Service) LookupUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	u, err := s.store.Users().Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return User{}, fmt.Errorf("auth: load user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by name. Admin only.
func (s *Service) ListUsers(ctx context.Context) ([]Member, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: list users: %w", err)
	}
	roles, err := s.store.Roles().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: list roles: %w", err)
	}
	out := make([]Member, 0, len(users))
	for _, u := range users {
		r := roles[u.ID]
		if r == nil {
			r = []Role{}
		}
		out = append(out, Member{User: u, Roles: r})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetUser returns one user with roles. Admin only.
func (s *Service) GetUser(ctx context.Context, id string) (Member, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return Member{}, err
	}
	return s.member(ctx, id)
}

// CreateUser adds a user with the given roles. Admin only.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (Member, error) {
	actor, err := RequireAdmin(ctx)
	if err != nil {
		return Member{}, err
	}
	return s.create(ctx, in, actor.Actor())
}

// Provision adds a user outside any session, for operator tooling.
func (s *Service) Provision(ctx context.Context, in UserInput) (Member, error) {
	return s.create(ctx, in, nil)
}

func (s *Service) create(ctx context.Context, in UserInput, actor *audit.Person) (Member, error) {
	email, name, err := normalizeProfile(in.Email, in.Name)
	if err != nil {
		return Member{}, err
	}
	roles, err := ParseRoles(in.Roles)
	if err != nil {
		return Member{}, err
	}
	now := s.now()
	u := User{ID: ids.NewAt(now), Email: email, Name: name, CreatedAt: now}
	if err := s.store.Users().Create(ctx, u, roles); err != nil {
		if errors.Is(err, ErrConflict) {
			return Member{}, fmt.Errorf("%w: email %q is already registered", ErrConflict, email)
		}
		return Member{}, fmt.Errorf("auth: create user: %w", err)
	}
	s.record(ctx, audit.Event{
		Actor:        actor,
		Action:       audit.ActionCreate,
		ResourceType: "user",
		ResourceID:   u.ID,
		ResourceName: u.Name,
		Details:      map[string]any{"roles": roles},
		Target:       Person(u),
	})
	return Member{User: u, Roles: roles}, nil
}

// UpdateUser changes name and email and replaces the role set. Admin only.
func (s *Service) UpdateUser(ctx context.Context, id string, in UserInput) (Member, error) {
	actor, err := RequireAdmin(ctx)
	if err != nil {
		return Member{}, err
	}
	email, name, err := normalizeProfile(in.Email, in.Name)
	if err != nil {
		return Member{}, err
	}
	roles, err := ParseRoles(in.Roles)
	if err != nil {
		return Member{}, err
	}
	current, err := s.LookupUser(ctx, id)
	if err != nil {
		return Member{}, err
	}
	u := current
	u.Email = email
	u.Name = name
	if err := s.store.Users().Update(ctx, u, roles); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			return Member{}, fmt.Errorf("%w: email %q is used by another user", ErrConflict, email)
		case errors.Is(err, ErrNotFound):
			return Member{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return Member{}, fmt.Errorf("auth: update user: %w", err)
	}
	changes := map[string]any{"roles": roles}
	if current.Name != u.Name {
		changes["name"] = u.Name
	}
	if current.Email != u.Email {
		changes["email_changed"] = true
	}
	s.record(ctx, audit.Event{
		Actor:        actor.Actor(),
		Action:       audit.ActionUpdate,
		ResourceType: "user",
		ResourceID:   u.ID,
		ResourceName: u.Name,
		Details:      changes,
		Target:       Person(u),
	})
	return Member{User: u, Roles: roles}, nil
}

// DeleteUser removes a user and everything it owns. Admin only.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	actor, err := RequireAdmin(ctx)
	if err != nil {
		return err
	}
	u, err := s.LookupUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Users().Delete(ctx, u.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return fmt.Errorf("auth: delete user: %w", err)
	}
	// the target reference would dangle, so the entry keeps only the snapshot
	s.record(ctx, audit.Event{
		Actor:        actor.Actor(),
		Action:       audit.ActionDelete,
		ResourceType: "user",
		ResourceID:   u.ID,
		ResourceName: u.Name,
	})
	return nil
}

// AddRole grants one role. Admin only.
func (s *Service) AddRole(ctx context.Context, userID, role string) error {
	if _, err := RequireAdmin(ctx); err != nil {
		return err
	}
	r, err := ParseRole(role)
	if err != nil {
		return err
	}
	if _, err := s.LookupUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.Roles().Add(ctx, userID, r); err != nil {
		return fmt.Errorf("auth: add role: %w", err)
	}
	return nil
}

// ReplaceRoles swaps the whole role set of a user. Admin only.
func (s *Service) ReplaceRoles(ctx context.Context, userID string, roles []string) error {
	if _, err := RequireAdmin(ctx); err != nil {
		return err
	}
	parsed, err := ParseRoles(roles)
	if err != nil {
		return err
	}
	if _, err := s.LookupUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.Roles().Replace(ctx, userID, parsed); err != nil {
		return fmt.Errorf("auth: replace roles: %w", err)
	}
	return nil
}

func (s *Service) member(ctx context.Context, id string) (Member, error) {
	u, err := s.LookupUser(ctx, id)
	if err != nil {
		return Member{}, err
	}
	roles, err := s.store.Roles().ForUser(ctx, u.ID)
	if err != nil {
		return Member{}, fmt.Errorf("auth: load roles: %w", err)
	}
	if roles == nil {
		roles = []Role{}
	}
	return Member{User: u, Roles: roles}, nil
}
