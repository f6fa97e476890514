package memory

import (
	"context"
	"sort"
	"time"

	"github.com/langalex/henry/internal/auth"
)

type userStore struct{ s *Store }

func (u userStore) Register(_ context.Context, user auth.User, bootstrap []auth.Role) ([]auth.Role, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, taken := u.s.byEmail[user.Email]; taken {
		return nil, auth.ErrConflict
	}
	var granted []auth.Role
	if len(u.s.users) == 0 {
		granted = append(granted, bootstrap...)
	}
	u.s.users[user.ID] = user
	u.s.byEmail[user.Email] = user.ID
	u.s.setRoles(user.ID, granted)
	return u.s.rolesOf(user.ID), nil
}

func (u userStore) Create(_ context.Context, user auth.User, roles []auth.Role) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, taken := u.s.byEmail[user.Email]; taken {
		return auth.ErrConflict
	}
	if _, taken := u.s.users[user.ID]; taken {
		return auth.ErrConflict
	}
	u.s.users[user.ID] = user
	u.s.byEmail[user.Email] = user.ID
	u.s.setRoles(user.ID, roles)
	return nil
}

func (u userStore) Get(_ context.Context, id string) (auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return user, nil
}

func (u userStore) GetByEmail(_ context.Context, email string) (auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	id, ok := u.s.byEmail[email]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u.s.users[id], nil
}

func (u userStore) List(context.Context) ([]auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	out := make([]auth.User, 0, len(u.s.users))
	for _, user := range u.s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (u userStore) Update(_ context.Context, user auth.User, roles []auth.Role) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	current, ok := u.s.users[user.ID]
	if !ok {
		return auth.ErrNotFound
	}
	if owner, taken := u.s.byEmail[user.Email]; taken && owner != user.ID {
		return auth.ErrConflict
	}
	delete(u.s.byEmail, current.Email)
	u.s.users[user.ID] = user
	u.s.byEmail[user.Email] = user.ID
	u.s.setRoles(user.ID, roles)
	return nil
}

func (u userStore) Delete(_ context.Context, id string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(u.s.users, id)
	delete(u.s.byEmail, user.Email)
	delete(u.s.roles, id)
	for sid, sess := range u.s.sessions {
		if sess.UserID == id {
			delete(u.s.sessions, sid)
		}
	}
	for tid, tok := range u.s.tokens {
		if tok.UserID == id {
			delete(u.s.tokens, tid)
		}
	}
	for _, byResource := range u.s.assignments {
		for _, byUser := range byResource {
			delete(byUser, id)
		}
	}
	for i := range u.s.entries {
		if u.s.entries[i].ActorID == id {
			u.s.entries[i].ActorID = ""
		}
		if u.s.entries[i].TargetID == id {
			u.s.entries[i].TargetID = ""
		}
	}
	return nil
}

type roleStore struct{ s *Store }

func (r roleStore) ForUser(_ context.Context, userID string) ([]auth.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.rolesOf(userID), nil
}

func (r roleStore) All(context.Context) (map[string][]auth.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string][]auth.Role, len(r.s.roles))
	for id := range r.s.roles {
		out[id] = r.s.rolesOf(id)
	}
	return out, nil
}

func (r roleStore) Add(_ context.Context, userID string, role auth.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return auth.ErrNotFound
	}
	set, ok := r.s.roles[userID]
	if !ok {
		set = make(map[auth.Role]struct{})
		r.s.roles[userID] = set
	}
	set[role] = struct{}{}
	return nil
}

func (r roleStore) Replace(_ context.Context, userID string, roles []auth.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return auth.ErrNotFound
	}
	r.s.setRoles(userID, roles)
	return nil
}

type sessionStore struct{ s *Store }

func (ss sessionStore) Create(_ context.Context, sess auth.Session) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	if _, ok := ss.s.users[sess.UserID]; !ok {
		return auth.ErrNotFound
	}
	if _, dup := ss.s.sessions[sess.ID]; dup {
		return auth.ErrConflict
	}
	ss.s.sessions[sess.ID] = sess
	return nil
}

func (ss sessionStore) GetWithUser(_ context.Context, id string) (auth.Session, auth.User, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()
	sess, ok := ss.s.sessions[id]
	if !ok {
		return auth.Session{}, auth.User{}, auth.ErrNotFound
	}
	user, ok := ss.s.users[sess.UserID]
	if !ok {
		return auth.Session{}, auth.User{}, auth.ErrNotFound
	}
	return sess, user, nil
}

func (ss sessionStore) Extend(_ context.Context, id string, expiresAt time.Time) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	sess, ok := ss.s.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	sess.ExpiresAt = expiresAt
	ss.s.sessions[id] = sess
	return nil
}

func (ss sessionStore) Delete(_ context.Context, id string) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	if _, ok := ss.s.sessions[id]; !ok {
		return auth.ErrNotFound
	}
	delete(ss.s.sessions, id)
	return nil
}

type tokenStore struct{ s *Store }

func (t tokenStore) Create(_ context.Context, tok auth.EmailToken) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.users[tok.UserID]; !ok {
		return auth.ErrNotFound
	}
	t.s.tokens[tok.ID] = tok
	return nil
}

func (t tokenStore) Consume(_ context.Context, id string) (auth.EmailToken, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tok, ok := t.s.tokens[id]
	if !ok {
		return auth.EmailToken{}, auth.ErrNotFound
	}
	delete(t.s.tokens, id)
	return tok, nil
}
