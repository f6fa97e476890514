package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/langalex/henry/internal/ledger"
)

// assignmentTable names the per-kind tables. Values are constants, never input.
type assignmentTable struct {
	resources string
	table     string
	column    string
	capacity  string
}

var assignmentTables = map[ledger.Kind]assignmentTable{
	ledger.KindJob:      {resources: "jobs", table: "job_assignments", column: "job_id", capacity: "number_of_people"},
	ledger.KindMaterial: {resources: "materials", table: "material_assignments", column: "material_id", capacity: "0"},
}

func tableFor(kind ledger.Kind) (assignmentTable, error) {
	t, ok := assignmentTables[kind]
	if !ok {
		return assignmentTable{}, fmt.Errorf("%w: unknown resource kind %q", ledger.ErrInvalidInput, kind)
	}
	return t, nil
}

type assignmentRow struct {
	Kind       string    `db:"kind"`
	ResourceID string    `db:"resource_id"`
	UserID     string    `db:"user_id"`
	UserName   string    `db:"user_name"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r assignmentRow) assignment() ledger.Assignment {
	return ledger.Assignment{Kind: ledger.Kind(r.Kind), ResourceID: r.ResourceID, UserID: r.UserID, UserName: r.UserName, CreatedAt: r.CreatedAt}
}

type assignmentStore struct{ db *sql.DB }

// WithResource locks the resource row for the length of the transaction, so
// concurrent assignments to the same job run one after another.
func (s assignmentStore) WithResource(ctx context.Context, kind ledger.Kind, id string, fn func(ledger.Resource, ledger.Tx) error) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		res := ledger.Resource{Kind: kind}
		err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`select id, event_id, title, %s from %s where id=$1 for update`, t.capacity, t.resources), id,
		).Scan(&res.ID, &res.EventID, &res.Title, &res.Capacity)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fn(res, &pgTx{tx: tx, t: t, id: id})
	})
}

func (s assignmentStore) List(ctx context.Context, kind ledger.Kind, resourceID string) ([]ledger.Assignment, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`select exists(select 1 from %s where id=$1)`, t.resources), resourceID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledger.ErrNotFound
	}
	var rows []assignmentRow
	if err := sqlscan.Select(ctx, s.db, &rows, fmt.Sprintf(`
		select $2::text as kind, a.%[1]s as resource_id, a.user_id, u.name as user_name, a.created_at
		from %[2]s a
		join users u on u.id = a.user_id
		where a.%[1]s=$1
		order by a.created_at, a.user_id
	`, t.column, t.table), resourceID, string(kind)); err != nil {
		return nil, err
	}
	return toAssignments(rows), nil
}

func (s assignmentStore) ListByEvent(ctx context.Context, eventID string) ([]ledger.Assignment, error) {
	var rows []assignmentRow
	if err := sqlscan.Select(ctx, s.db, &rows, `
		select 'job' as kind, a.job_id as resource_id, a.user_id, u.name as user_name, a.created_at
		from job_assignments a
		join jobs j on j.id = a.job_id
		join users u on u.id = a.user_id
		where j.event_id=$1
		union all
		select 'material', a.material_id, a.user_id, u.name, a.created_at
		from material_assignments a
		join materials m on m.id = a.material_id
		join users u on u.id = a.user_id
		where m.event_id=$1
		order by created_at, resource_id, user_id
	`, eventID); err != nil {
		return nil, err
	}
	return toAssignments(rows), nil
}

func toAssignments(rows []assignmentRow) []ledger.Assignment {
	out := make([]ledger.Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.assignment())
	}
	return out
}

// pgTx runs inside the transaction opened by WithResource.
type pgTx struct {
	tx *sql.Tx
	t  assignmentTable
	id string
}

func (p *pgTx) Has(ctx context.Context, userID string) (bool, error) {
	var has bool
	err := p.tx.QueryRowContext(ctx, fmt.Sprintf(
		`select exists(select 1 from %s where %s=$1 and user_id=$2)`, p.t.table, p.t.column), p.id, userID,
	).Scan(&has)
	return has, err
}

func (p *pgTx) Count(ctx context.Context) (int, error) {
	var n int
	err := p.tx.QueryRowContext(ctx, fmt.Sprintf(
		`select count(*) from %s where %s=$1`, p.t.table, p.t.column), p.id,
	).Scan(&n)
	return n, err
}

func (p *pgTx) Insert(ctx context.Context, a ledger.Assignment) error {
	_, err := p.tx.ExecContext(ctx, fmt.Sprintf(
		`insert into %s (%s, user_id, created_at) values ($1, $2, $3)`, p.t.table, p.t.column),
		p.id, a.UserID, a.CreatedAt)
	switch {
	case isCode(err, pgErrUniqueViolation):
		return ledger.ErrAlreadyAssigned
	case isCode(err, pgErrForeignKeyViolation):
		return ledger.ErrNotFound
	}
	return err
}

func (p *pgTx) Delete(ctx context.Context, userID string) (bool, error) {
	res, err := p.tx.ExecContext(ctx, fmt.Sprintf(
		`delete from %s where %s=$1 and user_id=$2`, p.t.table, p.t.column), p.id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
