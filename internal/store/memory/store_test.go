package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/events"
	"github.com/langalex/henry/internal/ledger"
)

func seed(t *testing.T, s *Store) (auth.User, events.Job, events.Material) {
	t.Helper()
	ctx := context.Background()
	u := auth.User{ID: "u1", Email: "ada@example.com", Name: "Ada", CreatedAt: time.Now()}
	if err := s.Users().Create(ctx, u, []auth.Role{auth.RoleAdmin}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	ev := events.Event{ID: "e1", Title: "Fair", Date: "2030-06-01", Time: "10:00"}
	if err := s.Events().Create(ctx, ev); err != nil {
		t.Fatalf("create event: %v", err)
	}
	job := events.Job{ID: "j1", EventID: ev.ID, Title: "Grill", StartTime: "10:00", EndTime: "12:00", Capacity: 2}
	if err := s.Jobs().Create(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	mat := events.Material{ID: "m1", EventID: ev.ID, Title: "Cake"}
	if err := s.Materials().Create(ctx, mat); err != nil {
		t.Fatalf("create material: %v", err)
	}
	return u, job, mat
}

func assign(t *testing.T, s *Store, kind ledger.Kind, resourceID, userID string) {
	t.Helper()
	err := s.Assignments().WithResource(context.Background(), kind, resourceID, func(_ ledger.Resource, tx ledger.Tx) error {
		return tx.Insert(context.Background(), ledger.Assignment{Kind: kind, ResourceID: resourceID, UserID: userID, CreatedAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
}

func TestRegisterGrantsBootstrapOnlyToFirstUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	first, err := s.Users().Register(ctx, auth.User{ID: "a", Email: "a@x.com", Name: "A"}, []auth.Role{auth.RoleAdmin})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(first) != 1 || first[0] != auth.RoleAdmin {
		t.Fatalf("first user roles = %v", first)
	}
	second, err := s.Users().Register(ctx, auth.User{ID: "b", Email: "b@x.com", Name: "B"}, []auth.Role{auth.RoleAdmin})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second user roles = %v", second)
	}
	if _, err := s.Users().Register(ctx, auth.User{ID: "c", Email: "b@x.com", Name: "C"}, nil); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, job, mat := seed(t, s)

	if err := s.Sessions().Create(ctx, auth.Session{ID: "s1", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := s.EmailTokens().Create(ctx, auth.EmailToken{ID: "t1", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create token: %v", err)
	}
	assign(t, s, ledger.KindJob, job.ID, u.ID)
	assign(t, s, ledger.KindMaterial, mat.ID, u.ID)
	if err := s.Audit().Append(ctx, audit.Entry{ID: "a1", ActorID: u.ID, TargetID: u.ID, Action: "assign", ResourceType: "job", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("append audit: %v", err)
	}

	if err := s.Users().Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, _, err := s.Sessions().GetWithUser(ctx, "s1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("session survived: %v", err)
	}
	if _, err := s.EmailTokens().Consume(ctx, "t1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("token survived: %v", err)
	}
	if roles, _ := s.Roles().ForUser(ctx, u.ID); len(roles) != 0 {
		t.Fatalf("roles survived: %v", roles)
	}
	for _, kind := range []ledger.Kind{ledger.KindJob, ledger.KindMaterial} {
		id := job.ID
		if kind == ledger.KindMaterial {
			id = mat.ID
		}
		list, err := s.Assignments().List(ctx, kind, id)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("%s assignments survived: %v", kind, list)
		}
	}
	views, err := s.Audit().List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(views) != 1 || views[0].ActorID != "" || views[0].TargetID != "" {
		t.Fatalf("audit entry should survive with cleared ids: %+v", views)
	}
}

func TestWithResourceRollsBackOnError(t *testing.T) {
	s := New()
	u, job, _ := seed(t, s)
	boom := errors.New("boom")
	err := s.Assignments().WithResource(context.Background(), ledger.KindJob, job.ID, func(_ ledger.Resource, tx ledger.Tx) error {
		if err := tx.Insert(context.Background(), ledger.Assignment{Kind: ledger.KindJob, ResourceID: job.ID, UserID: u.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	list, _ := s.Assignments().List(context.Background(), ledger.KindJob, job.ID)
	if len(list) != 0 {
		t.Fatalf("insert was not rolled back: %v", list)
	}
}

func TestWithResourceUnknownResource(t *testing.T) {
	s := New()
	err := s.Assignments().WithResource(context.Background(), ledger.KindJob, "missing", func(ledger.Resource, ledger.Tx) error {
		t.Fatalf("fn must not run")
		return nil
	})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobUpdateKeepsCapacityInvariant(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, job, _ := seed(t, s)
	other := auth.User{ID: "u2", Email: "bob@example.com", Name: "Bob"}
	if err := s.Users().Create(ctx, other, nil); err != nil {
		t.Fatalf("create user: %v", err)
	}
	assign(t, s, ledger.KindJob, job.ID, u.ID)
	assign(t, s, ledger.KindJob, job.ID, other.ID)

	job.Capacity = 1
	if err := s.Jobs().Update(ctx, job); !errors.Is(err, events.ErrCapacityBelowAssigned) {
		t.Fatalf("expected ErrCapacityBelowAssigned, got %v", err)
	}
	job.Capacity = 2
	if err := s.Jobs().Update(ctx, job); err != nil {
		t.Fatalf("update at current count: %v", err)
	}
}

func TestDeleteEventCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, job, mat := seed(t, s)
	assign(t, s, ledger.KindJob, job.ID, u.ID)

	if err := s.Events().Delete(ctx, job.EventID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	if _, err := s.Jobs().Get(ctx, job.ID); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("job survived: %v", err)
	}
	if _, err := s.Materials().Get(ctx, mat.ID); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("material survived: %v", err)
	}
	if _, ok := s.assignments[ledger.KindJob][job.ID]; ok {
		t.Fatalf("job assignments survived")
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _, _ := seed(t, s)
	if err := s.EmailTokens().Create(ctx, auth.EmailToken{ID: "t", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.EmailTokens().Consume(ctx, "t"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := s.EmailTokens().Consume(ctx, "t"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("second consume: %v", err)
	}
}
