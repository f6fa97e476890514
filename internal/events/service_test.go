package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/events"
	"github.com/langalex/henry/internal/ledger"
	"github.com/langalex/henry/internal/store/memory"
)

var now = time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	events *events.Service
	ledger *ledger.Service
	admin  context.Context
	member context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	clock := func() time.Time { return now }
	rec, err := audit.NewRecorder(store.Audit(), audit.WithClock(clock), audit.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	evs, err := events.NewService(store, rec, events.WithClock(clock), events.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	authSvc, err := auth.NewService(store, auth.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	led, err := ledger.NewService(store.Assignments(), authSvc, rec, ledger.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}

	admin := auth.User{ID: "admin", Email: "ada@example.com", Name: "Ada"}
	member := auth.User{ID: "bob", Email: "bob@example.com", Name: "Bob"}
	if err := store.Users().Create(ctx, admin, []auth.Role{auth.RoleAdmin}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if err := store.Users().Create(ctx, member, nil); err != nil {
		t.Fatalf("create member: %v", err)
	}
	return fixture{
		store:  store,
		events: evs,
		ledger: led,
		admin:  auth.ContextWithPrincipal(ctx, auth.Principal{User: admin, Roles: []auth.Role{auth.RoleAdmin}}),
		member: auth.ContextWithPrincipal(ctx, auth.Principal{User: member}),
	}
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		in   events.EventInput
		err  error
	}{
		{"ok", events.EventInput{Title: " Fair ", Date: "2030-06-01", Time: "10:00"}, nil},
		{"missing title", events.EventInput{Date: "2030-06-01", Time: "10:00"}, events.ErrInvalidInput},
		{"bad date", events.EventInput{Title: "Fair", Date: "01.06.2030", Time: "10:00"}, events.ErrInvalidInput},
		{"bad time", events.EventInput{Title: "Fair", Date: "2030-06-01", Time: "10am"}, events.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := f.events.Create(f.admin, tc.in)
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if err == nil && e.Title != "Fair" {
				t.Fatalf("title not trimmed: %q", e.Title)
			}
		})
	}
}

func TestWritesRequireAdmin(t *testing.T) {
	f := newFixture(t)
	in := events.EventInput{Title: "Fair", Date: "2030-06-01", Time: "10:00"}
	if _, err := f.events.Create(f.member, in); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.events.Create(context.Background(), in); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	e, err := f.events.Create(f.admin, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.events.Get(f.member, e.ID); err != nil {
		t.Fatalf("member read: %v", err)
	}
	if err := f.events.Delete(f.member, e.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
}

func TestDeleteOnlyFutureEvents(t *testing.T) {
	f := newFixture(t)
	past, err := f.events.Create(f.admin, events.EventInput{Title: "Old fair", Date: "2030-05-01", Time: "11:59"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.events.Delete(f.admin, past.ID); !errors.Is(err, events.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for past event, got %v", err)
	}
	future, err := f.events.Create(f.admin, events.EventInput{Title: "Fair", Date: "2030-05-01", Time: "12:30"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	job, err := f.events.CreateJob(f.admin, future.ID, events.JobInput{Title: "Grill", StartTime: "12:30", EndTime: "14:00", Capacity: 2})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := f.events.Delete(f.admin, future.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.events.Get(f.admin, future.ID); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := f.store.Jobs().Get(context.Background(), job.ID); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("job survived event delete: %v", err)
	}
}

func TestJobsBelongToEvent(t *testing.T) {
	f := newFixture(t)
	a, _ := f.events.Create(f.admin, events.EventInput{Title: "A", Date: "2030-06-01", Time: "10:00"})
	b, _ := f.events.Create(f.admin, events.EventInput{Title: "B", Date: "2030-06-02", Time: "10:00"})
	job, err := f.events.CreateJob(f.admin, a.ID, events.JobInput{Title: "Grill", StartTime: "10:00", EndTime: "12:00", Capacity: 1})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := f.events.UpdateJob(f.admin, b.ID, job.ID, events.JobInput{Title: "Grill", StartTime: "10:00", EndTime: "12:00", Capacity: 1}); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for job of another event, got %v", err)
	}
	if _, err := f.events.CreateJob(f.admin, "missing", events.JobInput{Title: "Grill", StartTime: "10:00", EndTime: "12:00", Capacity: 1}); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing event, got %v", err)
	}
	if _, err := f.events.CreateJob(f.admin, a.ID, events.JobInput{Title: "Grill", StartTime: "10:00", EndTime: "12:00"}); !errors.Is(err, events.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero capacity, got %v", err)
	}
	jobs, err := f.events.Jobs(f.member, a.ID)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("Jobs: %v %+v", err, jobs)
	}
}

func TestCapacityCannotDropBelowAssigned(t *testing.T) {
	f := newFixture(t)
	e, _ := f.events.Create(f.admin, events.EventInput{Title: "Fair", Date: "2030-06-01", Time: "10:00"})
	in := events.JobInput{Title: "Grill", StartTime: "10:00", EndTime: "12:00", Capacity: 2}
	job, err := f.events.CreateJob(f.admin, e.ID, in)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := f.ledger.Assign(f.admin, ledger.KindJob, job.ID, ""); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := f.ledger.Assign(f.member, ledger.KindJob, job.ID, ""); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	in.Capacity = 1
	if _, err := f.events.UpdateJob(f.admin, e.ID, job.ID, in); !errors.Is(err, events.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	stored, _ := f.store.Jobs().Get(context.Background(), job.ID)
	if stored.Capacity != 2 {
		t.Fatalf("capacity changed to %d", stored.Capacity)
	}

	in.Capacity = 3
	updated, err := f.events.UpdateJob(f.admin, e.ID, job.ID, in)
	if err != nil || updated.Capacity != 3 {
		t.Fatalf("UpdateJob: %v %+v", err, updated)
	}
}

func TestMaterialLifecycle(t *testing.T) {
	f := newFixture(t)
	e, _ := f.events.Create(f.admin, events.EventInput{Title: "Fair", Date: "2030-06-01", Time: "10:00"})
	m, err := f.events.CreateMaterial(f.admin, e.ID, events.MaterialInput{Title: "Cake"})
	if err != nil {
		t.Fatalf("CreateMaterial: %v", err)
	}
	if _, err := f.ledger.Assign(f.member, ledger.KindMaterial, m.ID, ""); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	m, err = f.events.UpdateMaterial(f.admin, e.ID, m.ID, events.MaterialInput{Title: "Lemon cake", Description: "no nuts"})
	if err != nil || m.Title != "Lemon cake" {
		t.Fatalf("UpdateMaterial: %v %+v", err, m)
	}
	if err := f.events.DeleteMaterial(f.admin, e.ID, m.ID); err != nil {
		t.Fatalf("DeleteMaterial: %v", err)
	}
	list, err := f.ledger.EventAssignments(f.member, e.ID)
	if err != nil || len(list) != 0 {
		t.Fatalf("assignments survived material delete: %v %+v", err, list)
	}
}

func TestWritesAreAudited(t *testing.T) {
	f := newFixture(t)
	e, _ := f.events.Create(f.admin, events.EventInput{Title: "Fair", Date: "2030-06-01", Time: "10:00"})
	if _, err := f.events.Update(f.admin, e.ID, events.EventInput{Title: "Summer fair", Date: "2030-06-01", Time: "11:00"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	views, err := f.store.Audit().List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(views))
	}
	latest := views[0]
	if latest.Action != audit.ActionUpdate || latest.ResourceType != "event" || latest.ResourceName != "Summer fair" {
		t.Fatalf("unexpected entry: %+v", latest.Entry)
	}
	if latest.ActorID != "admin" || latest.ActorDisplayName != "Ada" {
		t.Fatalf("unexpected actor: %+v", latest)
	}
}
