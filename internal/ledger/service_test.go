package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/events"
	"github.com/langalex/henry/internal/ledger"
	"github.com/langalex/henry/internal/store/memory"
)

type fixture struct {
	store  *memory.Store
	ledger *ledger.Service
	admin  auth.Principal
	users  []auth.Principal
	job    events.Job
	mat    events.Material
}

func newFixture(t *testing.T, capacity, members int) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	rec, err := audit.NewRecorder(store.Audit(), audit.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	authSvc, err := auth.NewService(store, auth.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	svc, err := ledger.NewService(store.Assignments(), authSvc, rec, ledger.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}

	admin := auth.User{ID: "admin", Email: "ada@example.com", Name: "Ada"}
	if err := store.Users().Create(ctx, admin, []auth.Role{auth.RoleAdmin}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	f := fixture{store: store, ledger: svc, admin: auth.Principal{User: admin, Roles: []auth.Role{auth.RoleAdmin}}}
	for i := 0; i < members; i++ {
		u := auth.User{ID: fmt.Sprintf("u%02d", i), Email: fmt.Sprintf("user%02d@example.com", i), Name: fmt.Sprintf("User %02d", i)}
		if err := store.Users().Create(ctx, u, nil); err != nil {
			t.Fatalf("create user: %v", err)
		}
		f.users = append(f.users, auth.Principal{User: u})
	}

	ev := events.Event{ID: "e1", Title: "Fair", Date: "2030-06-01", Time: "10:00", CreatedAt: time.Now()}
	f.job = events.Job{ID: "j1", EventID: ev.ID, Title: "Grill", StartTime: "10:00", EndTime: "12:00", Capacity: capacity}
	f.mat = events.Material{ID: "m1", EventID: ev.ID, Title: "Cake"}
	if err := store.Events().Create(ctx, ev); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := store.Jobs().Create(ctx, f.job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := store.Materials().Create(ctx, f.mat); err != nil {
		t.Fatalf("create material: %v", err)
	}
	return f
}

func as(p auth.Principal) context.Context {
	return auth.ContextWithPrincipal(context.Background(), p)
}

func (f fixture) auditCount(t *testing.T) int {
	t.Helper()
	n, err := f.store.Audit().Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestAssignSelf(t *testing.T) {
	f := newFixture(t, 2, 1)
	u := f.users[0]
	a, err := f.ledger.Assign(as(u), ledger.KindJob, f.job.ID, "")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if a.UserID != u.User.ID {
		t.Fatalf("assigned %s, want caller %s", a.UserID, u.User.ID)
	}
	list, err := f.ledger.Assignments(as(u), ledger.KindJob, f.job.ID)
	if err != nil {
		t.Fatalf("Assignments: %v", err)
	}
	if len(list) != 1 || list[0].UserName != u.User.Name {
		t.Fatalf("unexpected assignments: %+v", list)
	}
}

func TestAssignRequiresAuthentication(t *testing.T) {
	f := newFixture(t, 2, 0)
	if _, err := f.ledger.Assign(context.Background(), ledger.KindJob, f.job.ID, ""); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestMemberCannotAssignOthers(t *testing.T) {
	f := newFixture(t, 2, 2)
	if _, err := f.ledger.Assign(as(f.users[0]), ledger.KindJob, f.job.ID, f.users[1].User.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.ledger.Unassign(as(f.users[0]), ledger.KindMaterial, f.mat.ID, f.users[1].User.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if n := f.auditCount(t); n != 0 {
		t.Fatalf("denied calls must not be audited, got %d entries", n)
	}
}

func TestAdminAssignsOtherUserAndRepeatFails(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := as(f.admin)
	target := f.users[0].User

	// capacity C-1 of C after this call
	if _, err := f.ledger.Assign(ctx, ledger.KindJob, f.job.ID, f.users[1].User.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := f.ledger.Assign(ctx, ledger.KindJob, f.job.ID, target.ID); err != nil {
		t.Fatalf("Assign at C-1: %v", err)
	}
	before := f.auditCount(t)

	if _, err := f.ledger.Assign(ctx, ledger.KindJob, f.job.ID, target.ID); !errors.Is(err, ledger.ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}
	if n := f.auditCount(t); n != before {
		t.Fatalf("failed assign wrote audit entry: %d -> %d", before, n)
	}

	views, err := f.store.Audit().List(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	e := views[0]
	if e.Action != audit.ActionAssign || e.ActorID != f.admin.User.ID || e.TargetID != target.ID {
		t.Fatalf("unexpected entry: %+v", e.Entry)
	}
	if e.ResourceType != "job" || e.ResourceName != f.job.Title || e.TargetEmail != "u****0@***" {
		t.Fatalf("unexpected entry: %+v", e.Entry)
	}
}

func TestCapacityExceeded(t *testing.T) {
	f := newFixture(t, 1, 2)
	if _, err := f.ledger.Assign(as(f.users[0]), ledger.KindJob, f.job.ID, ""); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	before := f.auditCount(t)
	if _, err := f.ledger.Assign(as(f.users[1]), ledger.KindJob, f.job.ID, ""); !errors.Is(err, ledger.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	list, _ := f.ledger.Assignments(as(f.users[0]), ledger.KindJob, f.job.ID)
	if len(list) != 1 {
		t.Fatalf("over-allocated: %d assignments", len(list))
	}
	if f.auditCount(t) != before {
		t.Fatalf("rejected assign was audited")
	}
}

func TestMaterialsHaveNoCapacity(t *testing.T) {
	f := newFixture(t, 1, 3)
	for _, u := range f.users {
		if _, err := f.ledger.Assign(as(u), ledger.KindMaterial, f.mat.ID, ""); err != nil {
			t.Fatalf("Assign material: %v", err)
		}
	}
	if _, err := f.ledger.Assign(as(f.users[0]), ledger.KindMaterial, f.mat.ID, ""); !errors.Is(err, ledger.ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}
}

func TestUnknownResourceAndUser(t *testing.T) {
	f := newFixture(t, 1, 1)
	if _, err := f.ledger.Assign(as(f.users[0]), ledger.KindJob, "missing", ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for job, got %v", err)
	}
	if _, err := f.ledger.Assign(as(f.admin), ledger.KindJob, f.job.ID, "ghost"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for user, got %v", err)
	}
	if _, err := f.ledger.Assign(as(f.users[0]), ledger.Kind("shift"), f.job.ID, ""); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for kind, got %v", err)
	}
}

func TestUnassignIsIdempotent(t *testing.T) {
	f := newFixture(t, 1, 1)
	ctx := as(f.users[0])
	removed, err := f.ledger.Unassign(ctx, ledger.KindJob, f.job.ID, "")
	if err != nil || removed {
		t.Fatalf("unassign of non-member: removed=%v err=%v", removed, err)
	}
	if _, err := f.ledger.Assign(ctx, ledger.KindJob, f.job.ID, ""); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	removed, err = f.ledger.Unassign(ctx, ledger.KindJob, f.job.ID, "")
	if err != nil || !removed {
		t.Fatalf("unassign of member: removed=%v err=%v", removed, err)
	}
	// the freed slot can be taken again
	if _, err := f.ledger.Assign(ctx, ledger.KindJob, f.job.ID, ""); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	views, _ := f.store.Audit().List(context.Background(), 10, 0)
	actions := map[string]int{}
	for _, v := range views {
		actions[v.Action]++
	}
	if actions[audit.ActionAssign] != 2 || actions[audit.ActionUnassign] != 2 {
		t.Fatalf("unexpected audit actions: %v", actions)
	}
}

func TestConcurrentAssignNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	f := newFixture(t, capacity, 20)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for _, u := range f.users {
		wg.Add(1)
		go func(p auth.Principal) {
			defer wg.Done()
			_, err := f.ledger.Assign(as(p), ledger.KindJob, f.job.ID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ledger.ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u)
	}
	wg.Wait()

	if ok != capacity || full != len(f.users)-capacity {
		t.Fatalf("ok=%d full=%d, want %d and %d", ok, full, capacity, len(f.users)-capacity)
	}
	list, _ := f.ledger.Assignments(as(f.admin), ledger.KindJob, f.job.ID)
	if len(list) != capacity {
		t.Fatalf("stored %d assignments, want %d", len(list), capacity)
	}
	if n := f.auditCount(t); n != capacity {
		t.Fatalf("audit entries = %d, want %d", n, capacity)
	}
}

func TestEventAssignments(t *testing.T) {
	f := newFixture(t, 2, 1)
	ctx := as(f.users[0])
	if _, err := f.ledger.Assign(ctx, ledger.KindJob, f.job.ID, ""); err != nil {
		t.Fatalf("Assign job: %v", err)
	}
	if _, err := f.ledger.Assign(ctx, ledger.KindMaterial, f.mat.ID, ""); err != nil {
		t.Fatalf("Assign material: %v", err)
	}
	list, err := f.ledger.EventAssignments(ctx, f.job.EventID)
	if err != nil {
		t.Fatalf("EventAssignments: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 assignments, got %+v", list)
	}
}
