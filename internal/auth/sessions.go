package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/langalex/henry/internal/obs"
)

// CreateSession starts a session for userID. The returned secret goes to the
// client; the session id is its digest.
func (s *Service) CreateSession(ctx context.Context, userID string) (string, Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", Session{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	secret, err := newSecret()
	if err != nil {
		return "", Session{}, err
	}
	sess := Session{
		ID:        Digest(secret),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.store.Sessions().Create(ctx, sess); err != nil {
		return "", Session{}, fmt.Errorf("auth: store session: %w", err)
	}
	obs.ObserveSession("created")
	return secret, sess, nil
}

// ResolveSession maps a client secret to its principal. ok is false for unknown
// and expired sessions; expired rows are deleted on the way. A session inside
// its renewal window gets a full new lifetime.
func (s *Service) ResolveSession(ctx context.Context, secret string) (Principal, bool, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return Principal{}, false, nil
	}
	id := Digest(secret)
	sess, user, err := s.store.Sessions().GetWithUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, false, nil
		}
		return Principal{}, false, fmt.Errorf("auth: load session: %w", err)
	}

	now := s.now()
	if !now.Before(sess.ExpiresAt) {
		if err := s.store.Sessions().Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return Principal{}, false, fmt.Errorf("auth: delete expired session: %w", err)
		}
		obs.ObserveSession("expired")
		return Principal{}, false, nil
	}

	renewed := false
	if !now.Before(sess.ExpiresAt.Add(-s.renewWindow)) {
		next := now.Add(s.sessionTTL)
		if err := s.store.Sessions().Extend(ctx, id, next); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("session renewal failed")
		} else {
			sess.ExpiresAt = next
			renewed = true
			obs.ObserveSession("renewed")
		}
	}

	roles, err := s.store.Roles().ForUser(ctx, user.ID)
	if err != nil {
		return Principal{}, false, fmt.Errorf("auth: load roles: %w", err)
	}
	return Principal{User: user, Session: sess, Roles: roles, Renewed: renewed}, true, nil
}

// InvalidateSession deletes one session. Unknown ids are ignored.
func (s *Service) InvalidateSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := s.store.Sessions().Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	obs.ObserveSession("invalidated")
	return nil
}
