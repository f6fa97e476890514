package memory

import (
	"context"
	"sort"

	"github.com/langalex/henry/internal/events"
	"github.com/langalex/henry/internal/ledger"
)

type eventStore struct{ s *Store }

func (e eventStore) Create(_ context.Context, ev events.Event) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.events[ev.ID] = ev
	return nil
}

func (e eventStore) Get(_ context.Context, id string) (events.Event, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	ev, ok := e.s.events[id]
	if !ok {
		return events.Event{}, events.ErrNotFound
	}
	return ev, nil
}

func (e eventStore) List(context.Context) ([]events.Event, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	out := make([]events.Event, 0, len(e.s.events))
	for _, ev := range e.s.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (e eventStore) Update(_ context.Context, ev events.Event) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if _, ok := e.s.events[ev.ID]; !ok {
		return events.ErrNotFound
	}
	e.s.events[ev.ID] = ev
	return nil
}

func (e eventStore) Delete(_ context.Context, id string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if _, ok := e.s.events[id]; !ok {
		return events.ErrNotFound
	}
	delete(e.s.events, id)
	for jid, j := range e.s.jobs {
		if j.EventID == id {
			delete(e.s.jobs, jid)
			e.s.dropAssignments(ledger.KindJob, jid)
		}
	}
	for mid, m := range e.s.materials {
		if m.EventID == id {
			delete(e.s.materials, mid)
			e.s.dropAssignments(ledger.KindMaterial, mid)
		}
	}
	return nil
}

type jobStore struct{ s *Store }

func (j jobStore) Create(_ context.Context, job events.Job) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if _, ok := j.s.events[job.EventID]; !ok {
		return events.ErrNotFound
	}
	j.s.jobs[job.ID] = job
	return nil
}

func (j jobStore) Get(_ context.Context, id string) (events.Job, error) {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	job, ok := j.s.jobs[id]
	if !ok {
		return events.Job{}, events.ErrNotFound
	}
	return job, nil
}

func (j jobStore) ListByEvent(_ context.Context, eventID string) ([]events.Job, error) {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	var out []events.Job
	for _, job := range j.s.jobs {
		if job.EventID == eventID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].StartTime != out[b].StartTime {
			return out[a].StartTime < out[b].StartTime
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (j jobStore) Update(_ context.Context, job events.Job) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if _, ok := j.s.jobs[job.ID]; !ok {
		return events.ErrNotFound
	}
	if len(j.s.assignments[ledger.KindJob][job.ID]) > job.Capacity {
		return events.ErrCapacityBelowAssigned
	}
	j.s.jobs[job.ID] = job
	return nil
}

func (j jobStore) Delete(_ context.Context, id string) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if _, ok := j.s.jobs[id]; !ok {
		return events.ErrNotFound
	}
	delete(j.s.jobs, id)
	j.s.dropAssignments(ledger.KindJob, id)
	return nil
}

type materialStore struct{ s *Store }

func (m materialStore) Create(_ context.Context, mat events.Material) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.events[mat.EventID]; !ok {
		return events.ErrNotFound
	}
	m.s.materials[mat.ID] = mat
	return nil
}

func (m materialStore) Get(_ context.Context, id string) (events.Material, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	mat, ok := m.s.materials[id]
	if !ok {
		return events.Material{}, events.ErrNotFound
	}
	return mat, nil
}

func (m materialStore) ListByEvent(_ context.Context, eventID string) ([]events.Material, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []events.Material
	for _, mat := range m.s.materials {
		if mat.EventID == eventID {
			out = append(out, mat)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m materialStore) Update(_ context.Context, mat events.Material) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.materials[mat.ID]; !ok {
		return events.ErrNotFound
	}
	m.s.materials[mat.ID] = mat
	return nil
}

func (m materialStore) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.materials[id]; !ok {
		return events.ErrNotFound
	}
	delete(m.s.materials, id)
	m.s.dropAssignments(ledger.KindMaterial, id)
	return nil
}
