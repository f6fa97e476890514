package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/obs"
)

const (
	// DefaultSessionTTL is the lifetime of a fresh or renewed session.
	DefaultSessionTTL = 30 * 24 * time.Hour
	// DefaultRenewWindow is how long before expiry a resolved session gets renewed.
	DefaultRenewWindow = 15 * 24 * time.Hour
	// DefaultEmailTokenTTL is the lifetime of a login link.
	DefaultEmailTokenTTL = time.Hour

	defaultBaseURL = "http://localhost:5173"
)

// LinkSender delivers login links. Delivery is not confirmed back to the service.
type LinkSender interface {
	SendLoginLink(ctx context.Context, address, link string) error
}

// Service implements passwordless login, sessions and user administration.
type Service struct {
	store  Store
	audit  audit.Sink
	sender LinkSender
	log    zerolog.Logger
	now    func() time.Time

	sessionTTL    time.Duration
	renewWindow   time.Duration
	emailTokenTTL time.Duration
	devToken      string
	baseURL       string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn == nil {
			return errors.New("auth: clock is nil")
		}
		s.now = fn
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) error {
		s.log = l
		return nil
	}
}

// WithAuditSink records user administration through sink.
func WithAuditSink(sink audit.Sink) ServiceOption {
	return func(s *Service) error {
		s.audit = sink
		return nil
	}
}

// WithLinkSender delivers login links through sender.
func WithLinkSender(sender LinkSender) ServiceOption {
	return func(s *Service) error {
		s.sender = sender
		return nil
	}
}

// WithBaseURL sets the public application URL login links point to.
func WithBaseURL(raw string) ServiceOption {
	return func(s *Service) error {
		raw = strings.TrimRight(strings.TrimSpace(raw), "/")
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("auth: base url %q is not absolute", raw)
		}
		s.baseURL = raw
		return nil
	}
}

// WithDevEmailToken makes every issued email token equal to token so end-to-end
// tests can log in without reading mail. Callers must only pass it outside production.
func WithDevEmailToken(token string) ServiceOption {
	return func(s *Service) error {
		s.devToken = strings.TrimSpace(token)
		return nil
	}
}

// WithSessionTTL overrides the session lifetime and renewal window.
func WithSessionTTL(ttl, renewWindow time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 || renewWindow <= 0 || renewWindow > ttl {
			return errors.New("auth: invalid session ttl")
		}
		s.sessionTTL = ttl
		s.renewWindow = renewWindow
		return nil
	}
}

// NewService constructs the auth service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	s := &Service{
		store:         store,
		log:           obs.Logger(),
		now:           func() time.Time { return time.Now().UTC() },
		sessionTTL:    DefaultSessionTTL,
		renewWindow:   DefaultRenewWindow,
		emailTokenTTL: DefaultEmailTokenTTL,
		baseURL:       defaultBaseURL,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoginLink returns the URL that verifies secret.
func (s *Service) LoginLink(secret string) string {
	return s.baseURL + "/auth/verify?token=" + url.QueryEscape(secret)
}

// record writes an audit entry after a successful mutation. Failures are logged
// and do not undo the mutation.
func (s *Service) record(ctx context.Context, e audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, e); err != nil {
		s.log.Error().Err(err).Str("action", e.Action).Str("resource_id", e.ResourceID).Msg("audit record failed")
	}
}
