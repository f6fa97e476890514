package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/ids"
	"github.com/langalex/henry/internal/obs"
)

// Service manages events and the jobs and materials they need. Reads require a
// logged-in user, writes require an admin.
type Service struct {
	store Store
	audit audit.Sink
	log   zerolog.Logger
	now   func() time.Time
	loc   *time.Location
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

// WithLocation sets the time zone event dates and times are written in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService constructs the service. sink may be nil to skip auditing.
func NewService(store Store, sink audit.Sink, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("events: store is required")
	}
	s := &Service{
		store: store,
		audit: sink,
		log:   obs.Logger(),
		now:   func() time.Time { return time.Now().UTC() },
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns all events ordered by date and time.
func (s *Service) List(ctx context.Context) ([]Event, error) {
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return nil, err
	}
	evs, err := s.store.Events().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("events: list: %w", err)
	}
	return evs, nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return Event{}, err
	}
	return s.event(ctx, id)
}

// Jobs returns the jobs of an event ordered by start time.
func (s *Service) Jobs(ctx context.Context, eventID string) ([]Job, error) {
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return nil, err
	}
	jobs, err := s.store.Jobs().ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("events: list jobs: %w", err)
	}
	return jobs, nil
}

// Materials returns the materials of an event.
func (s *Service) Materials(ctx context.Context, eventID string) ([]Material, error) {
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return nil, err
	}
	mats, err := s.store.Materials().ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("events: list materials: %w", err)
	}
	return mats, nil
}

// Create adds an event.
func (s *Service) Create(ctx context.Context, in EventInput) (Event, error) {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return Event{}, err
	}
	in, err = normalizeEvent(in)
	if err != nil {
		return Event{}, err
	}
	now := s.now()
	e := Event{ID: ids.NewAt(now), Title: in.Title, Description: in.Description, Date: in.Date, Time: in.Time, CreatedAt: now}
	if err := s.store.Events().Create(ctx, e); err != nil {
		return Event{}, fmt.Errorf("events: create: %w", err)
	}
	s.record(ctx, p, audit.ActionCreate, "event", e.ID, e.Title, map[string]any{"date": e.Date, "time": e.Time})
	return e, nil
}

// Update replaces the editable fields of an event.
func (s *Service) Update(ctx context.Context, id string, in EventInput) (Event, error) {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return Event{}, err
	}
	in, err = normalizeEvent(in)
	if err != nil {
		return Event{}, err
	}
	e, err := s.event(ctx, id)
	if err != nil {
		return Event{}, err
	}
	e.Title, e.Description, e.Date, e.Time = in.Title, in.Description, in.Date, in.Time
	if err := s.store.Events().Update(ctx, e); err != nil {
		return Event{}, s.wrap("update event", id, err)
	}
	s.record(ctx, p, audit.ActionUpdate, "event", e.ID, e.Title, in)
	return e, nil
}

// Delete removes an event that has not started yet, with its jobs and materials.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	e, err := s.event(ctx, id)
	if err != nil {
		return err
	}
	start, err := time.ParseInLocation(dateLayout+"T"+timeLayout, e.Date+"T"+e.Time, s.loc)
	if err != nil {
		return fmt.Errorf("events: stored event %s has malformed date: %w", e.ID, err)
	}
	if start.Before(s.now()) {
		return fmt.Errorf("%w: only future events can be deleted", ErrInvalidInput)
	}
	if err := s.store.Events().Delete(ctx, id); err != nil {
		return s.wrap("delete event", id, err)
	}
	s.record(ctx, p, audit.ActionDelete, "event", e.ID, e.Title, map[string]any{"title": e.Title})
	return nil
}

// CreateJob adds a job to an event.
func (s *Service) CreateJob(ctx context.Context, eventID string, in JobInput) (Job, error) {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return Job{}, err
	}
	in, err = normalizeJob(in)
	if err != nil {
		return Job{}, err
	}
	if _, err := s.event(ctx, eventID); err != nil {
		return Job{}, err
	}
	j := Job{
		ID:          ids.NewAt(s.now()),
		EventID:     eventID,
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Capacity:    in.Capacity,
	}
	if err := s.store.Jobs().Create(ctx, j); err != nil {
		return Job{}, s.wrap("create job for event", eventID, err)
	}
	s.record(ctx, p, audit.ActionCreate, "job", j.ID, j.Title, in)
	return j, nil
}

// UpdateJob replaces the editable fields of a job. The capacity cannot drop
// below the number of volunteers already assigned.
func (s *Service) UpdateJob(ctx context.Context, eventID, jobID string, in JobInput) (Job, error) {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return Job{}, err
	}
	in, err = normalizeJob(in)
	if err != nil {
		return Job{}, err
	}
	j, err := s.job(ctx, eventID, jobID)
	if err != nil {
		return Job{}, err
	}
	j.Title, j.Description, j.StartTime, j.EndTime, j.Capacity = in.Title, in.Description, in.StartTime, in.EndTime, in.Capacity
	if err := s.store.Jobs().Update(ctx, j); err != nil {
		if errors.Is(err, ErrCapacityBelowAssigned) {
			return Job{}, fmt.Errorf("%w: number of people is below the volunteers already assigned", ErrInvalidInput)
		}
		return Job{}, s.wrap("update job", jobID, err)
	}
	s.record(ctx, p, audit.ActionUpdate, "job", j.ID, j.Title, in)
	return j, nil
}

// DeleteJob removes a job and its assignments.
func (s *Service) DeleteJob(ctx context.Context, eventID, jobID string) error {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	j, err := s.job(ctx, eventID, jobID)
	if err != nil {
		return err
	}
	if err := s.store.Jobs().Delete(ctx, j.ID); err != nil {
		return s.wrap("delete job", jobID, err)
	}
	s.record(ctx, p, audit.ActionDelete, "job", j.ID, j.Title, map[string]any{"title": j.Title, "eventId": j.EventID})
	return nil
}

// CreateMaterial adds a material to an event.
func (s *Service) CreateMaterial(ctx context.Context, eventID string, in MaterialInput) (Material, error) {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return Material{}, err
	}
	in, err = normalizeMaterial(in)
	if err != nil {
		return Material{}, err
	}
	if _, err := s.event(ctx, eventID); err != nil {
		return Material{}, err
	}
	m := Material{ID: ids.NewAt(s.now()), EventID: eventID, Title: in.Title, Description: in.Description}
	if err := s.store.Materials().Create(ctx, m); err != nil {
		return Material{}, s.wrap("create material for event", eventID, err)
	}
	s.record(ctx, p, audit.ActionCreate, "material", m.ID, m.Title, in)
	return m, nil
}

// UpdateMaterial replaces the editable fields of a material.
func (s *Service) UpdateMaterial(ctx context.Context, eventID, materialID string, in MaterialInput) (Material, error) {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return Material{}, err
	}
	in, err = normalizeMaterial(in)
	if err != nil {
		return Material{}, err
	}
	m, err := s.material(ctx, eventID, materialID)
	if err != nil {
		return Material{}, err
	}
	m.Title, m.Description = in.Title, in.Description
	if err := s.store.Materials().Update(ctx, m); err != nil {
		return Material{}, s.wrap("update material", materialID, err)
	}
	s.record(ctx, p, audit.ActionUpdate, "material", m.ID, m.Title, in)
	return m, nil
}

// DeleteMaterial removes a material and its assignments.
func (s *Service) DeleteMaterial(ctx context.Context, eventID, materialID string) error {
	p, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	m, err := s.material(ctx, eventID, materialID)
	if err != nil {
		return err
	}
	if err := s.store.Materials().Delete(ctx, m.ID); err != nil {
		return s.wrap("delete material", materialID, err)
	}
	s.record(ctx, p, audit.ActionDelete, "material", m.ID, m.Title, map[string]any{"title": m.Title, "eventId": m.EventID})
	return nil
}

func (s *Service) event(ctx context.Context, id string) (Event, error) {
	if strings.TrimSpace(id) == "" {
		return Event{}, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}
	e, err := s.store.Events().Get(ctx, id)
	if err != nil {
		return Event{}, s.wrap("load event", id, err)
	}
	return e, nil
}

func (s *Service) job(ctx context.Context, eventID, id string) (Job, error) {
	j, err := s.store.Jobs().Get(ctx, id)
	if err != nil {
		return Job{}, s.wrap("load job", id, err)
	}
	if j.EventID != eventID {
		return Job{}, fmt.Errorf("%w: job %s in event %s", ErrNotFound, id, eventID)
	}
	return j, nil
}

func (s *Service) material(ctx context.Context, eventID, id string) (Material, error) {
	m, err := s.store.Materials().Get(ctx, id)
	if err != nil {
		return Material{}, s.wrap("load material", id, err)
	}
	if m.EventID != eventID {
		return Material{}, fmt.Errorf("%w: material %s in event %s", ErrNotFound, id, eventID)
	}
	return m, nil
}

func (s *Service) wrap(op, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, op, id)
	}
	return fmt.Errorf("events: %s %s: %w", op, id, err)
}

func (s *Service) record(ctx context.Context, p auth.Principal, action, resourceType, id, name string, details any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, audit.Event{
		Actor:        p.Actor(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   id,
		ResourceName: name,
		Details:      details,
	})
	if err != nil {
		s.log.Error().Err(err).Str("action", action).Str("resource_id", id).Msg("audit record failed")
	}
}

func normalizeEvent(in EventInput) (EventInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return in, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if _, err := time.Parse(timeLayout, in.Time); err != nil {
		return in, fmt.Errorf("%w: time must be HH:MM", ErrInvalidInput)
	}
	return in, nil
}

func normalizeJob(in JobInput) (JobInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if _, err := time.Parse(timeLayout, in.StartTime); err != nil {
		return in, fmt.Errorf("%w: start time must be HH:MM", ErrInvalidInput)
	}
	if _, err := time.Parse(timeLayout, in.EndTime); err != nil {
		return in, fmt.Errorf("%w: end time must be HH:MM", ErrInvalidInput)
	}
	if in.Capacity <= 0 {
		return in, fmt.Errorf("%w: number of people must be positive", ErrInvalidInput)
	}
	return in, nil
}

func normalizeMaterial(in MaterialInput) (MaterialInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return in, nil
}
