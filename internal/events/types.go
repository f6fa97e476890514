package events

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("events: not found")
	ErrInvalidInput = errors.New("events: invalid input")
	// ErrCapacityBelowAssigned is returned by JobStore.Update when the new
	// capacity is lower than the number of current assignments.
	ErrCapacityBelowAssigned = errors.New("events: capacity below current assignments")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Event is a dated occasion that owns jobs and materials.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	CreatedAt   time.Time `json:"created_at"`
}

// Job is a time slot of an event that needs Capacity volunteers.
type Job struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Capacity    int    `json:"number_of_people"`
}

// Material is something an event needs someone to bring.
type Material struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// EventInput carries the editable fields of an event.
type EventInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// JobInput carries the editable fields of a job.
type JobInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Capacity    int    `json:"number_of_people"`
}

// MaterialInput carries the editable fields of a material.
type MaterialInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Store exposes event persistence. Deleting an event removes its jobs and
// materials, and deleting either removes its assignments.
type Store interface {
	Events() EventStore
	Jobs() JobStore
	Materials() MaterialStore
}

type EventStore interface {
	Create(ctx context.Context, e Event) error
	Get(ctx context.Context, id string) (Event, error)
	// List returns events ordered by date and time.
	List(ctx context.Context) ([]Event, error)
	Update(ctx context.Context, e Event) error
	Delete(ctx context.Context, id string) error
}

type JobStore interface {
	Create(ctx context.Context, j Job) error
	Get(ctx context.Context, id string) (Job, error)
	// ListByEvent returns the jobs of an event ordered by start time.
	ListByEvent(ctx context.Context, eventID string) ([]Job, error)
	Update(ctx context.Context, j Job) error
	Delete(ctx context.Context, id string) error
}

type MaterialStore interface {
	Create(ctx context.Context, m Material) error
	Get(ctx context.Context, id string) (Material, error)
	ListByEvent(ctx context.Context, eventID string) ([]Material, error)
	Update(ctx context.Context, m Material) error
	Delete(ctx context.Context, id string) error
}
