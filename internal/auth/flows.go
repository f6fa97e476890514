package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/ids"
	"github.com/langalex/henry/internal/obs"
)

// Signup registers a new user and mails it a login link. The first user of an
// empty organization becomes admin; later signups start without roles.
func (s *Service) Signup(ctx context.Context, email, name string) (Member, error) {
	email, name, err := normalizeProfile(email, name)
	if err != nil {
		return Member{}, err
	}
	now := s.now()
	u := User{ID: ids.NewAt(now), Email: email, Name: name, CreatedAt: now}
	granted, err := s.store.Users().Register(ctx, u, []Role{RoleAdmin})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Member{}, fmt.Errorf("%w: email %q is already registered", ErrConflict, email)
		}
		return Member{}, fmt.Errorf("auth: register user: %w", err)
	}
	if granted == nil {
		granted = []Role{}
	}
	s.log.Info().Str("user_id", u.ID).Bool("bootstrap_admin", len(granted) > 0).Msg("user signed up")
	s.record(ctx, audit.Event{
		Actor:        Person(u),
		Action:       audit.ActionCreate,
		ResourceType: "user",
		ResourceID:   u.ID,
		ResourceName: u.Name,
		Details:      map[string]any{"source": "signup", "roles": granted},
		Target:       Person(u),
	})
	if err := s.sendLoginLink(ctx, u); err != nil {
		return Member{}, err
	}
	return Member{User: u, Roles: granted}, nil
}

// RequestLoginLink mails a fresh login link to the user registered under email.
func (s *Service) RequestLoginLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	u, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return fmt.Errorf("auth: load user: %w", err)
	}
	return s.sendLoginLink(ctx, u)
}

// Verify exchanges an email secret for a new session. It returns the session
// secret for the client together with the resolved principal.
func (s *Service) Verify(ctx context.Context, emailSecret string) (string, Principal, error) {
	u, err := s.ValidateEmailToken(ctx, emailSecret)
	if err != nil {
		return "", Principal{}, err
	}
	secret, sess, err := s.CreateSession(ctx, u.ID)
	if err != nil {
		return "", Principal{}, err
	}
	roles, err := s.store.Roles().ForUser(ctx, u.ID)
	if err != nil {
		return "", Principal{}, fmt.Errorf("auth: load roles: %w", err)
	}
	s.log.Info().Str("user_id", u.ID).Msg("login verified")
	return secret, Principal{User: u, Session: sess, Roles: roles}, nil
}

// Logout invalidates the session of the principal on ctx, if any.
func (s *Service) Logout(ctx context.Context) error {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil
	}
	return s.InvalidateSession(ctx, p.Session.ID)
}

func (s *Service) sendLoginLink(ctx context.Context, u User) error {
	secret, err := s.IssueEmailToken(ctx, u.ID)
	if err != nil {
		return err
	}
	link := s.LoginLink(secret)
	if s.sender == nil {
		s.log.Warn().Str("user_id", u.ID).Msg("no link sender configured, login link dropped")
		obs.ObserveLoginLink("dropped")
		return nil
	}
	if err := s.sender.SendLoginLink(ctx, u.Email, link); err != nil {
		s.log.Error().Err(err).Str("user_id", u.ID).Msg("send login link")
		obs.ObserveLoginLink("failed")
		return nil
	}
	obs.ObserveLoginLink("sent")
	return nil
}

func normalizeProfile(email, name string) (string, string, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" {
		return "", "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return "", "", fmt.Errorf("%w: email %q is malformed", ErrInvalidInput, email)
	}
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return email, name, nil
}
