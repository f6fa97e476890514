package memory

import (
	"context"
	"sort"

	"github.com/langalex/henry/internal/ledger"
)

type assignmentStore struct{ s *Store }

// WithResource holds the store lock for the whole of fn, so transactions on
// any resource are serialized.
func (a assignmentStore) WithResource(ctx context.Context, kind ledger.Kind, id string, fn func(ledger.Resource, ledger.Tx) error) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	res, ok := a.s.resource(kind, id)
	if !ok {
		return ledger.ErrNotFound
	}
	tx := &memTx{s: a.s, kind: kind, id: id}
	if err := fn(res, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (a assignmentStore) List(_ context.Context, kind ledger.Kind, resourceID string) ([]ledger.Assignment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if _, ok := a.s.resource(kind, resourceID); !ok {
		return nil, ledger.ErrNotFound
	}
	out := a.s.assignmentsOf(kind, resourceID)
	sortAssignments(out)
	return out, nil
}

func (a assignmentStore) ListByEvent(_ context.Context, eventID string) ([]ledger.Assignment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	var out []ledger.Assignment
	for id, j := range a.s.jobs {
		if j.EventID == eventID {
			out = append(out, a.s.assignmentsOf(ledger.KindJob, id)...)
		}
	}
	for id, m := range a.s.materials {
		if m.EventID == eventID {
			out = append(out, a.s.assignmentsOf(ledger.KindMaterial, id)...)
		}
	}
	sortAssignments(out)
	return out, nil
}

// resource must be called with s.mu held.
func (s *Store) resource(kind ledger.Kind, id string) (ledger.Resource, bool) {
	switch kind {
	case ledger.KindJob:
		j, ok := s.jobs[id]
		if !ok {
			return ledger.Resource{}, false
		}
		return ledger.Resource{Kind: kind, ID: j.ID, EventID: j.EventID, Title: j.Title, Capacity: j.Capacity}, true
	case ledger.KindMaterial:
		m, ok := s.materials[id]
		if !ok {
			return ledger.Resource{}, false
		}
		return ledger.Resource{Kind: kind, ID: m.ID, EventID: m.EventID, Title: m.Title}, true
	}
	return ledger.Resource{}, false
}

// assignmentsOf must be called with s.mu held. User names are resolved at read time.
func (s *Store) assignmentsOf(kind ledger.Kind, resourceID string) []ledger.Assignment {
	byUser := s.assignments[kind][resourceID]
	out := make([]ledger.Assignment, 0, len(byUser))
	for _, a := range byUser {
		if u, ok := s.users[a.UserID]; ok {
			a.UserName = u.Name
		}
		out = append(out, a)
	}
	return out
}

func sortAssignments(as []ledger.Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].CreatedAt.Before(as[j].CreatedAt)
		}
		if as[i].ResourceID != as[j].ResourceID {
			return as[i].ResourceID < as[j].ResourceID
		}
		return as[i].UserID < as[j].UserID
	})
}

// memTx runs under the store lock and keeps undo steps until fn finishes.
type memTx struct {
	s    *Store
	kind ledger.Kind
	id   string
	undo []func()
}

func (t *memTx) rows() map[string]ledger.Assignment {
	byResource := t.s.assignments[t.kind]
	rows, ok := byResource[t.id]
	if !ok {
		rows = make(map[string]ledger.Assignment)
		byResource[t.id] = rows
	}
	return rows
}

func (t *memTx) Has(_ context.Context, userID string) (bool, error) {
	_, ok := t.rows()[userID]
	return ok, nil
}

func (t *memTx) Count(context.Context) (int, error) {
	return len(t.rows()), nil
}

func (t *memTx) Insert(_ context.Context, a ledger.Assignment) error {
	rows := t.rows()
	if _, dup := rows[a.UserID]; dup {
		return ledger.ErrAlreadyAssigned
	}
	if _, ok := t.s.users[a.UserID]; !ok {
		return ledger.ErrNotFound
	}
	rows[a.UserID] = a
	t.undo = append(t.undo, func() { delete(rows, a.UserID) })
	return nil
}

func (t *memTx) Delete(_ context.Context, userID string) (bool, error) {
	rows := t.rows()
	prev, ok := rows[userID]
	if !ok {
		return false, nil
	}
	delete(rows, userID)
	t.undo = append(t.undo, func() { rows[userID] = prev })
	return true, nil
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
