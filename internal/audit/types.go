package audit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidInput reports an event missing its action or resource type.
var ErrInvalidInput = errors.New("audit: invalid input")

// Actions recorded by the application.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionAssign   = "assign"
	ActionUnassign = "unassign"
)

// Person identifies the actor or target of an action at the time it happened.
type Person struct {
	ID    string
	Name  string
	Email string
}

// Event is one action to record. Details may be a string, stored verbatim, or any
// JSON-encodable value.
type Event struct {
	Actor        *Person
	Action       string
	ResourceType string
	ResourceID   string
	ResourceName string
	Details      any
	Target       *Person
}

// Entry is a persisted audit record. Email fields hold masked values only, and
// ActorID/TargetID become empty once the referenced user is deleted.
type Entry struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id,omitempty"`
	ActorName    string    `json:"actor_name,omitempty"`
	ActorEmail   string    `json:"actor_email,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty"`
	ResourceName string    `json:"resource_name,omitempty"`
	Details      string    `json:"details,omitempty"`
	TargetID     string    `json:"target_id,omitempty"`
	TargetName   string    `json:"target_name,omitempty"`
	TargetEmail  string    `json:"target_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// View is an Entry joined with the current display names of its actor and target.
type View struct {
	Entry
	ActorDisplayName  string `json:"actor_display_name,omitempty"`
	TargetDisplayName string `json:"target_display_name,omitempty"`
}

// Page is one slice of the log, newest first.
type Page struct {
	Entries    []View `json:"entries"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Total      int    `json:"total"`
}

// Store persists audit entries. Implementations never update or delete entries
// except for clearing user references when a user is removed.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, limit, offset int) ([]View, error)
	Count(ctx context.Context) (int, error)
}

// Sink accepts events to record.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Publisher receives every entry after it was stored.
type Publisher interface {
	Publish(e Entry)
}
