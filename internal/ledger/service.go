package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/obs"
)

// UserDirectory resolves assignment targets.
type UserDirectory interface {
	LookupUser(ctx context.Context, id string) (auth.User, error)
}

// Service assigns users to jobs and materials. Every state change is audited.
type Service struct {
	store Store
	users UserDirectory
	audit audit.Sink
	log   zerolog.Logger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService constructs the ledger.
func NewService(store Store, users UserDirectory, sink audit.Sink, opts ...Option) (*Service, error) {
	if store == nil || users == nil || sink == nil {
		return nil, errors.New("ledger: store, user directory and audit sink are required")
	}
	s := &Service{
		store: store,
		users: users,
		audit: sink,
		log:   obs.Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Assign puts userID on the resource; an empty userID means the caller.
// Members may only assign themselves. Jobs accept at most Capacity users.
func (s *Service) Assign(ctx context.Context, kind Kind, resourceID, userID string) (Assignment, error) {
	p, target, err := s.prepare(ctx, kind, resourceID, userID)
	if err != nil {
		s.observe(kind, audit.ActionAssign, err)
		return Assignment{}, err
	}

	a := Assignment{Kind: kind, ResourceID: resourceID, UserID: target.ID, UserName: target.Name, CreatedAt: s.now()}
	var res Resource
	err = s.store.WithResource(ctx, kind, resourceID, func(r Resource, tx Tx) error {
		res = r
		has, err := tx.Has(ctx, target.ID)
		if err != nil {
			return err
		}
		if has {
			return fmt.Errorf("%w: %s is already assigned to %s", ErrAlreadyAssigned, target.Name, r.Title)
		}
		if kind == KindJob {
			n, err := tx.Count(ctx)
			if err != nil {
				return err
			}
			if n >= r.Capacity {
				return fmt.Errorf("%w: %s already has %d of %d people", ErrCapacityExceeded, r.Title, n, r.Capacity)
			}
		}
		return tx.Insert(ctx, a)
	})
	if err != nil {
		err = s.wrap(kind, resourceID, err)
		s.observe(kind, audit.ActionAssign, err)
		return Assignment{}, err
	}
	s.observe(kind, audit.ActionAssign, nil)
	s.record(ctx, p, audit.ActionAssign, res, target, nil)
	return a, nil
}

// Unassign removes userID from the resource; an empty userID means the
// caller. Removing a user that is not assigned succeeds without a change. It
// reports whether an assignment was removed.
func (s *Service) Unassign(ctx context.Context, kind Kind, resourceID, userID string) (bool, error) {
	p, target, err := s.prepare(ctx, kind, resourceID, userID)
	if err != nil {
		s.observe(kind, audit.ActionUnassign, err)
		return false, err
	}

	var (
		res     Resource
		removed bool
	)
	err = s.store.WithResource(ctx, kind, resourceID, func(r Resource, tx Tx) error {
		res = r
		var err error
		removed, err = tx.Delete(ctx, target.ID)
		return err
	})
	if err != nil {
		err = s.wrap(kind, resourceID, err)
		s.observe(kind, audit.ActionUnassign, err)
		return false, err
	}
	s.observe(kind, audit.ActionUnassign, nil)
	s.record(ctx, p, audit.ActionUnassign, res, target, map[string]any{"removed": removed})
	return removed, nil
}

// Assignments lists who is assigned to a resource.
func (s *Service) Assignments(ctx context.Context, kind Kind, resourceID string) ([]Assignment, error) {
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return nil, err
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	out, err := s.store.List(ctx, kind, resourceID)
	if err != nil {
		return nil, s.wrap(kind, resourceID, err)
	}
	return out, nil
}

// EventAssignments lists the assignments of every resource of an event.
func (s *Service) EventAssignments(ctx context.Context, eventID string) ([]Assignment, error) {
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return nil, err
	}
	out, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list assignments of event %s: %w", eventID, err)
	}
	return out, nil
}

func (s *Service) prepare(ctx context.Context, kind Kind, resourceID, userID string) (auth.Principal, auth.User, error) {
	p, err := auth.RequireAuthenticated(ctx)
	if err != nil {
		return auth.Principal{}, auth.User{}, err
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return auth.Principal{}, auth.User{}, err
	}
	if strings.TrimSpace(resourceID) == "" {
		return auth.Principal{}, auth.User{}, fmt.Errorf("%w: %s id is required", ErrInvalidInput, kind)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == p.User.ID {
		return p, p.User, nil
	}
	if !p.IsAdmin() {
		return auth.Principal{}, auth.User{}, auth.ErrForbidden
	}
	target, err := s.users.LookupUser(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return auth.Principal{}, auth.User{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return auth.Principal{}, auth.User{}, err
	}
	return p, target, nil
}

func (s *Service) wrap(kind Kind, id string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	case errors.Is(err, ErrAlreadyAssigned), errors.Is(err, ErrCapacityExceeded):
		return err
	}
	return fmt.Errorf("ledger: %s %s: %w", kind, id, err)
}

func (s *Service) record(ctx context.Context, p auth.Principal, action string, res Resource, target auth.User, extra map[string]any) {
	details := map[string]any{"userId": target.ID, "userName": target.Name}
	if res.EventID != "" {
		details["eventId"] = res.EventID
	}
	for k, v := range extra {
		details[k] = v
	}
	err := s.audit.Record(ctx, audit.Event{
		Actor:        p.Actor(),
		Action:       action,
		ResourceType: string(res.Kind),
		ResourceID:   res.ID,
		ResourceName: res.Title,
		Details:      details,
		Target:       auth.Person(target),
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("action", action).
			Str("kind", string(res.Kind)).
			Str("resource_id", res.ID).
			Str("target_user_id", target.ID).
			Msg("audit record failed after assignment change")
	}
}

func (s *Service) observe(kind Kind, action string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyAssigned):
		result = "already_assigned"
	case errors.Is(err, ErrCapacityExceeded):
		result = "capacity_exceeded"
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated):
		result = "denied"
	case errors.Is(err, ErrInvalidInput):
		result = "invalid"
	default:
		result = "error"
	}
	obs.ObserveAssignment(string(kind), action, result)
}
