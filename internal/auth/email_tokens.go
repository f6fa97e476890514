package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// IssueEmailToken creates a single-use login token for userID and returns its
// secret. Only the digest is stored.
func (s *Service) IssueEmailToken(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	secret := s.devToken
	if secret == "" {
		var err error
		if secret, err = newSecret(); err != nil {
			return "", err
		}
	}
	tok := EmailToken{
		ID:        Digest(secret),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.emailTokenTTL),
	}
	if err := s.store.EmailTokens().Create(ctx, tok); err != nil {
		return "", fmt.Errorf("auth: store email token: %w", err)
	}
	return secret, nil
}

// ValidateEmailToken consumes the token behind secret and returns its owner. The
// token is gone after the first call whatever the outcome; unknown and expired
// tokens both fail with ErrInvalidToken.
func (s *Service) ValidateEmailToken(ctx context.Context, secret string) (User, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return User{}, ErrInvalidToken
	}
	tok, err := s.store.EmailTokens().Consume(ctx, Digest(secret))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, fmt.Errorf("auth: consume email token: %w", err)
	}
	if !s.now().Before(tok.ExpiresAt) {
		return User{}, ErrInvalidToken
	}
	user, err := s.store.Users().Get(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, fmt.Errorf("auth: load token owner: %w", err)
	}
	return user, nil
}
