package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/langalex/henry/internal/ids"
	"github.com/langalex/henry/internal/obs"
)

// DefaultPageSize is the number of entries per page when none is configured.
const DefaultPageSize = 50

// Recorder appends audit entries and serves them back in pages.
type Recorder struct {
	store    Store
	now      func() time.Time
	log      zerolog.Logger
	pub      Publisher
	pageSize int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithLogger sets the logger used for the per-entry log line.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// WithPublisher forwards stored entries to p.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) { r.pub = p }
}

// WithPageSize sets the page size used by Page.
func WithPageSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// NewRecorder constructs a Recorder backed by store.
func NewRecorder(store Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("audit: store is required")
	}
	r := &Recorder{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		log:      obs.Logger(),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record appends one entry for e. Emails of actor and target are masked before
// the entry leaves this function.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	action := strings.TrimSpace(e.Action)
	resourceType := strings.TrimSpace(e.ResourceType)
	if action == "" || resourceType == "" {
		return fmt.Errorf("%w: action and resource type are required", ErrInvalidInput)
	}
	details, err := encodeDetails(e.Details)
	if err != nil {
		return fmt.Errorf("%w: details: %v", ErrInvalidInput, err)
	}

	now := r.now()
	entry := Entry{
		ID:           ids.NewAt(now),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   e.ResourceID,
		ResourceName: e.ResourceName,
		Details:      details,
		CreatedAt:    now,
	}
	if e.Actor != nil {
		entry.ActorID = e.Actor.ID
		entry.ActorName = e.Actor.Name
		entry.ActorEmail = MaskEmail(e.Actor.Email)
	}
	if e.Target != nil {
		entry.TargetID = e.Target.ID
		entry.TargetName = e.Target.Name
		entry.TargetEmail = MaskEmail(e.Target.Email)
	}

	if err := r.store.Append(ctx, entry); err != nil {
		obs.ObserveAuditFailure()
		r.log.Error().Err(err).
			Str("action", entry.Action).
			Str("resource_type", entry.ResourceType).
			Str("resource_id", entry.ResourceID).
			Msg("audit write failed")
		return fmt.Errorf("audit: append: %w", err)
	}

	ev := r.log.Info().
		Str("type", "audit").
		Str("audit_id", entry.ID).
		Str("action", entry.Action).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID)
	if entry.ActorID != "" {
		ev = ev.Str("user_id", entry.ActorID)
	}
	if entry.TargetID != "" {
		ev = ev.Str("target_user_id", entry.TargetID)
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg("audit")

	if r.pub != nil {
		r.pub.Publish(entry)
	}
	return nil
}

// Query returns up to limit entries starting at offset, newest first.
func (r *Recorder) Query(ctx context.Context, limit, offset int) ([]View, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidInput)
	}
	return r.store.List(ctx, limit, offset)
}

// Count returns the number of stored entries.
func (r *Recorder) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Page returns the 1-based page n. Requests past the last page yield an empty
// entry list with the totals still filled in.
func (r *Recorder) Page(ctx context.Context, n int) (Page, error) {
	if n < 1 {
		n = 1
	}
	total, err := r.store.Count(ctx)
	if err != nil {
		return Page{}, err
	}
	entries, err := r.Query(ctx, r.pageSize, (n-1)*r.pageSize)
	if err != nil {
		return Page{}, err
	}
	if entries == nil {
		entries = []View{}
	}
	return Page{
		Entries:    entries,
		Page:       n,
		TotalPages: (total + r.pageSize - 1) / r.pageSize,
		Total:      total,
	}, nil
}

func encodeDetails(v any) (string, error) {
	switch d := v.(type) {
	case nil:
		return "", nil
	case string:
		return d, nil
	case []byte:
		return string(d), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
