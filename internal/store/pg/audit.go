package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/langalex/henry/internal/audit"
)

type auditRow struct {
	ID                string    `db:"id"`
	ActorID           string    `db:"actor_id"`
	ActorName         string    `db:"actor_name"`
	ActorEmail        string    `db:"actor_email"`
	Action            string    `db:"action"`
	ResourceType      string    `db:"resource_type"`
	ResourceID        string    `db:"resource_id"`
	ResourceName      string    `db:"resource_name"`
	Details           string    `db:"details"`
	TargetID          string    `db:"target_id"`
	TargetName        string    `db:"target_name"`
	TargetEmail       string    `db:"target_email"`
	CreatedAt         time.Time `db:"created_at"`
	ActorDisplayName  string    `db:"actor_display_name"`
	TargetDisplayName string    `db:"target_display_name"`
}

func (r auditRow) view() audit.View {
	return audit.View{
		Entry: audit.Entry{
			ID:           r.ID,
			ActorID:      r.ActorID,
			ActorName:    r.ActorName,
			ActorEmail:   r.ActorEmail,
			Action:       r.Action,
			ResourceType: r.ResourceType,
			ResourceID:   r.ResourceID,
			ResourceName: r.ResourceName,
			Details:      r.Details,
			TargetID:     r.TargetID,
			TargetName:   r.TargetName,
			TargetEmail:  r.TargetEmail,
			CreatedAt:    r.CreatedAt,
		},
		ActorDisplayName:  r.ActorDisplayName,
		TargetDisplayName: r.TargetDisplayName,
	}
}

type auditStore struct{ db *sql.DB }

// Append stores null for user references that no longer exist.
func (s auditStore) Append(ctx context.Context, e audit.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (
			id, user_id, actor_name, actor_email, action, resource_type, resource_id,
			resource_name, details, target_user_id, target_name, target_email, created_at
		) values (
			$1, (select id from users where id=$2), $3, $4, $5, $6, $7,
			$8, $9, (select id from users where id=$10), $11, $12, $13
		)
	`, e.ID, e.ActorID, e.ActorName, e.ActorEmail, e.Action, e.ResourceType, e.ResourceID,
		e.ResourceName, e.Details, e.TargetID, e.TargetName, e.TargetEmail, e.CreatedAt)
	return err
}

func (s auditStore) List(ctx context.Context, limit, offset int) ([]audit.View, error) {
	var rows []auditRow
	if err := sqlscan.Select(ctx, s.db, &rows, `
		select a.id, coalesce(a.user_id, '') as actor_id, a.actor_name, a.actor_email,
		       a.action, a.resource_type, a.resource_id, a.resource_name, a.details,
		       coalesce(a.target_user_id, '') as target_id, a.target_name, a.target_email,
		       a.created_at,
		       coalesce(actor.name, '') as actor_display_name,
		       coalesce(target.name, '') as target_display_name
		from audit_log a
		left join users actor on actor.id = a.user_id
		left join users target on target.id = a.target_user_id
		order by a.created_at desc, a.id desc
		limit $1 offset $2
	`, limit, offset); err != nil {
		return nil, err
	}
	out := make([]audit.View, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.view())
	}
	return out, nil
}

func (s auditStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from audit_log`).Scan(&n)
	return n, err
}
