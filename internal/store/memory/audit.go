package memory

import (
	"context"
	"sort"

	"github.com/langalex/henry/internal/audit"
)

type auditStore struct{ s *Store }

func (a auditStore) Append(_ context.Context, e audit.Entry) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if e.ActorID != "" {
		if _, ok := a.s.users[e.ActorID]; !ok {
			e.ActorID = ""
		}
	}
	if e.TargetID != "" {
		if _, ok := a.s.users[e.TargetID]; !ok {
			e.TargetID = ""
		}
	}
	a.s.entries = append(a.s.entries, e)
	return nil
}

func (a auditStore) List(_ context.Context, limit, offset int) ([]audit.View, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	sorted := append([]audit.Entry(nil), a.s.entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if offset >= len(sorted) {
		return []audit.View{}, nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	out := make([]audit.View, 0, end-offset)
	for _, e := range sorted[offset:end] {
		v := audit.View{Entry: e}
		if u, ok := a.s.users[e.ActorID]; ok {
			v.ActorDisplayName = u.Name
		}
		if u, ok := a.s.users[e.TargetID]; ok {
			v.TargetDisplayName = u.Name
		}
		out = append(out, v)
	}
	return out, nil
}

func (a auditStore) Count(context.Context) (int, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return len(a.s.entries), nil
}
