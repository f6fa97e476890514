package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound         = errors.New("ledger: not found")
	ErrAlreadyAssigned  = errors.New("ledger: already assigned")
	ErrCapacityExceeded = errors.New("ledger: capacity exceeded")
	ErrInvalidInput     = errors.New("ledger: invalid input")
)

// Kind names the resource type an assignment refers to.
type Kind string

const (
	KindJob      Kind = "job"
	KindMaterial Kind = "material"
)

// ParseKind validates a resource kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindJob, KindMaterial:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown resource kind %q", ErrInvalidInput, s)
}

// Resource is the assignable thing. Capacity is only enforced for jobs.
type Resource struct {
	Kind     Kind
	ID       string
	EventID  string
	Title    string
	Capacity int
}

// Assignment links one user to one resource.
type Assignment struct {
	Kind       Kind      `json:"kind"`
	ResourceID string    `json:"resource_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Tx operates on the assignments of a single resource. Implementations
// serialize transactions on the same resource.
type Tx interface {
	Has(ctx context.Context, userID string) (bool, error)
	Count(ctx context.Context) (int, error)
	// Insert fails with ErrAlreadyAssigned on a duplicate (resource, user) pair.
	Insert(ctx context.Context, a Assignment) error
	Delete(ctx context.Context, userID string) (bool, error)
}

// Store persists assignments.
type Store interface {
	// WithResource locks the resource and runs fn. It fails with ErrNotFound if
	// the resource does not exist. Changes made through tx are kept only if fn
	// returns nil.
	WithResource(ctx context.Context, kind Kind, id string, fn func(res Resource, tx Tx) error) error
	// List returns the assignments of a resource, oldest first.
	List(ctx context.Context, kind Kind, resourceID string) ([]Assignment, error)
	// ListByEvent returns the assignments of every job and material of an event.
	ListByEvent(ctx context.Context, eventID string) ([]Assignment, error)
}
