package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/langalex/henry/internal/obs"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []Entry
	failErr error
}

func (s *fakeStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeStore) List(_ context.Context, limit, offset int) ([]View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := append([]Entry(nil), s.entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	var out []View
	for i := offset; i < len(sorted) && len(out) < limit; i++ {
		out = append(out, View{Entry: sorted[i]})
	}
	return out, nil
}

func (s *fakeStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

type capturePublisher struct{ got []Entry }

func (p *capturePublisher) Publish(e Entry) { p.got = append(p.got, e) }

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestRecordMasksEmailsAndEncodesDetails(t *testing.T) {
	store := &fakeStore{}
	pub := &capturePublisher{}
	var buf bytes.Buffer
	rec, err := NewRecorder(store,
		WithClock(fixedClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))),
		WithLogger(obs.NewLogger(&buf, zerolog.InfoLevel)),
		WithPublisher(pub),
	)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	err = rec.Record(ctx, Event{
		Actor:        &Person{ID: "admin-1", Name: "Ada", Email: "ada@example.com"},
		Action:       ActionAssign,
		ResourceType: "job",
		ResourceID:   "job-1",
		ResourceName: "Grill",
		Details:      map[string]any{"userId": "u-2", "userName": "Bob"},
		Target:       &Person{ID: "u-2", Name: "Bob", Email: "bob@example.com"},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(store.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(store.entries))
	}
	e := store.entries[0]
	if e.ActorEmail != "a*a@***" || e.TargetEmail != "b*b@***" {
		t.Fatalf("emails not masked: %+v", e)
	}
	if e.Details != `{"userId":"u-2","userName":"Bob"}` {
		t.Fatalf("details = %s", e.Details)
	}
	if strings.Contains(buf.String(), "example.com") {
		t.Fatalf("log line leaked an email: %s", buf.String())
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if line["request_id"] != "req-123" || line["type"] != "audit" {
		t.Fatalf("unexpected log line: %v", line)
	}
	if len(pub.got) != 1 || pub.got[0].ID != e.ID {
		t.Fatalf("publisher not called with stored entry")
	}
}

func TestRecordRejectsMissingAction(t *testing.T) {
	rec, _ := NewRecorder(&fakeStore{}, WithLogger(zerolog.Nop()))
	err := rec.Record(context.Background(), Event{ResourceType: "job"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRecordStoreFailure(t *testing.T) {
	pub := &capturePublisher{}
	rec, _ := NewRecorder(&fakeStore{failErr: errors.New("disk full")}, WithLogger(zerolog.Nop()), WithPublisher(pub))
	err := rec.Record(context.Background(), Event{Action: ActionDelete, ResourceType: "event"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(pub.got) != 0 {
		t.Fatalf("failed entries must not be published")
	}
}

func TestPageNewestFirst(t *testing.T) {
	store := &fakeStore{}
	rec, _ := NewRecorder(store,
		WithClock(fixedClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))),
		WithLogger(zerolog.Nop()),
		WithPageSize(2),
	)
	ctx := context.Background()
	for _, name := range []string{"one", "two", "three"} {
		if err := rec.Record(ctx, Event{Action: ActionCreate, ResourceType: "event", ResourceName: name}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	first, err := rec.Page(ctx, 1)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if first.Total != 3 || first.TotalPages != 2 || len(first.Entries) != 2 {
		t.Fatalf("unexpected page: %+v", first)
	}
	if first.Entries[0].ResourceName != "three" || first.Entries[1].ResourceName != "two" {
		t.Fatalf("expected newest first, got %s, %s", first.Entries[0].ResourceName, first.Entries[1].ResourceName)
	}

	second, err := rec.Page(ctx, 2)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(second.Entries) != 1 || second.Entries[0].ResourceName != "one" {
		t.Fatalf("unexpected second page: %+v", second)
	}

	beyond, err := rec.Page(ctx, 9)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if beyond.Entries == nil || len(beyond.Entries) != 0 {
		t.Fatalf("expected empty, non-nil entries past the end")
	}
}

func TestQueryValidatesBounds(t *testing.T) {
	rec, _ := NewRecorder(&fakeStore{}, WithLogger(zerolog.Nop()))
	if _, err := rec.Query(context.Background(), 0, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero limit, got %v", err)
	}
	if _, err := rec.Query(context.Background(), 10, -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative offset, got %v", err)
	}
}
