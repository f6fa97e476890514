// Package memory keeps all application state in process memory. It backs tests
// and single-instance deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/events"
	"github.com/langalex/henry/internal/ledger"
)

// Store implements auth.Store, events.Store, audit.Store (via Audit) and
// ledger.Store (via Assignments) behind a single lock.
type Store struct {
	mu sync.RWMutex

	users    map[string]auth.User
	byEmail  map[string]string
	roles    map[string]map[auth.Role]struct{}
	sessions map[string]auth.Session
	tokens   map[string]auth.EmailToken

	events    map[string]events.Event
	jobs      map[string]events.Job
	materials map[string]events.Material

	// kind -> resource id -> user id
	assignments map[ledger.Kind]map[string]map[string]ledger.Assignment

	entries []audit.Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]auth.User),
		byEmail:   make(map[string]string),
		roles:     make(map[string]map[auth.Role]struct{}),
		sessions:  make(map[string]auth.Session),
		tokens:    make(map[string]auth.EmailToken),
		events:    make(map[string]events.Event),
		jobs:      make(map[string]events.Job),
		materials: make(map[string]events.Material),
		assignments: map[ledger.Kind]map[string]map[string]ledger.Assignment{
			ledger.KindJob:      {},
			ledger.KindMaterial: {},
		},
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Users() auth.UserStore             { return userStore{s} }
func (s *Store) Roles() auth.RoleStore             { return roleStore{s} }
func (s *Store) Sessions() auth.SessionStore       { return sessionStore{s} }
func (s *Store) EmailTokens() auth.EmailTokenStore { return tokenStore{s} }
func (s *Store) Events() events.EventStore         { return eventStore{s} }
func (s *Store) Jobs() events.JobStore             { return jobStore{s} }
func (s *Store) Materials() events.MaterialStore   { return materialStore{s} }
func (s *Store) Audit() audit.Store                { return auditStore{s} }
func (s *Store) Assignments() ledger.Store         { return assignmentStore{s} }

// rolesOf must be called with s.mu held.
func (s *Store) rolesOf(userID string) []auth.Role {
	set := s.roles[userID]
	out := make([]auth.Role, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// setRoles must be called with s.mu held.
func (s *Store) setRoles(userID string, roles []auth.Role) {
	if len(roles) == 0 {
		delete(s.roles, userID)
		return
	}
	set := make(map[auth.Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	s.roles[userID] = set
}

// dropAssignments removes every assignment of one resource. s.mu must be held.
func (s *Store) dropAssignments(kind ledger.Kind, resourceID string) {
	delete(s.assignments[kind], resourceID)
}
