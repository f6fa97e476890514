package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/langalex/henry/internal/events"
)

const eventColumns = `
	id, title, description,
	to_char(event_date, 'YYYY-MM-DD') as date,
	to_char(event_time, 'HH24:MI') as time,
	created_at`

type eventRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Date        string    `db:"date"`
	Time        string    `db:"time"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r eventRow) event() events.Event {
	return events.Event{ID: r.ID, Title: r.Title, Description: r.Description, Date: r.Date, Time: r.Time, CreatedAt: r.CreatedAt}
}

type eventStore struct{ db *sql.DB }

func (s eventStore) Create(ctx context.Context, e events.Event) error {
	_, err := s.db.ExecContext(ctx, `
		insert into events (id, title, description, event_date, event_time, created_at)
		values ($1, $2, $3, $4::date, $5::time, $6)
	`, e.ID, e.Title, e.Description, e.Date, e.Time, e.CreatedAt)
	return err
}

func (s eventStore) Get(ctx context.Context, id string) (events.Event, error) {
	var row eventRow
	if err := sqlscan.Get(ctx, s.db, &row, `select `+eventColumns+` from events where id=$1`, id); err != nil {
		if sqlscan.NotFound(err) {
			return events.Event{}, events.ErrNotFound
		}
		return events.Event{}, err
	}
	return row.event(), nil
}

func (s eventStore) List(ctx context.Context) ([]events.Event, error) {
	var rows []eventRow
	if err := sqlscan.Select(ctx, s.db, &rows, `
		select `+eventColumns+`
		from events
		order by event_date, event_time, id
	`); err != nil {
		return nil, err
	}
	out := make([]events.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.event())
	}
	return out, nil
}

func (s eventStore) Update(ctx context.Context, e events.Event) error {
	res, err := s.db.ExecContext(ctx, `
		update events
		set title=$2, description=$3, event_date=$4::date, event_time=$5::time
		where id=$1
	`, e.ID, e.Title, e.Description, e.Date, e.Time)
	if err != nil {
		return err
	}
	return affected(res, events.ErrNotFound)
}

func (s eventStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from events where id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, events.ErrNotFound)
}

const jobColumns = `
	id, event_id, title, description,
	to_char(start_time, 'HH24:MI') as start_time,
	to_char(end_time, 'HH24:MI') as end_time,
	number_of_people`

type jobRow struct {
	ID             string `db:"id"`
	EventID        string `db:"event_id"`
	Title          string `db:"title"`
	Description    string `db:"description"`
	StartTime      string `db:"start_time"`
	EndTime        string `db:"end_time"`
	NumberOfPeople int    `db:"number_of_people"`
}

func (r jobRow) job() events.Job {
	return events.Job{
		ID:          r.ID,
		EventID:     r.EventID,
		Title:       r.Title,
		Description: r.Description,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Capacity:    r.NumberOfPeople,
	}
}

type jobStore struct{ db *sql.DB }

func (s jobStore) Create(ctx context.Context, j events.Job) error {
	_, err := s.db.ExecContext(ctx, `
		insert into jobs (id, event_id, title, description, start_time, end_time, number_of_people)
		values ($1, $2, $3, $4, $5::time, $6::time, $7)
	`, j.ID, j.EventID, j.Title, j.Description, j.StartTime, j.EndTime, j.Capacity)
	if isCode(err, pgErrForeignKeyViolation) {
		return events.ErrNotFound
	}
	return err
}

func (s jobStore) Get(ctx context.Context, id string) (events.Job, error) {
	var row jobRow
	if err := sqlscan.Get(ctx, s.db, &row, `select `+jobColumns+` from jobs where id=$1`, id); err != nil {
		if sqlscan.NotFound(err) {
			return events.Job{}, events.ErrNotFound
		}
		return events.Job{}, err
	}
	return row.job(), nil
}

func (s jobStore) ListByEvent(ctx context.Context, eventID string) ([]events.Job, error) {
	var rows []jobRow
	if err := sqlscan.Select(ctx, s.db, &rows, `
		select `+jobColumns+`
		from jobs
		where event_id=$1
		order by start_time, id
	`, eventID); err != nil {
		return nil, err
	}
	out := make([]events.Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.job())
	}
	return out, nil
}

// Update locks the job row, the same lock assignments take, before comparing
// the new capacity with the current assignment count.
func (s jobStore) Update(ctx context.Context, j events.Job) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `select id from jobs where id=$1 for update`, j.ID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return events.ErrNotFound
		}
		if err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, `select count(*) from job_assignments where job_id=$1`, j.ID).Scan(&n); err != nil {
			return err
		}
		if n > j.Capacity {
			return events.ErrCapacityBelowAssigned
		}
		_, err = tx.ExecContext(ctx, `
			update jobs
			set title=$2, description=$3, start_time=$4::time, end_time=$5::time, number_of_people=$6
			where id=$1
		`, j.ID, j.Title, j.Description, j.StartTime, j.EndTime, j.Capacity)
		return err
	})
}

func (s jobStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from jobs where id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, events.ErrNotFound)
}

type materialRow struct {
	ID          string `db:"id"`
	EventID     string `db:"event_id"`
	Title       string `db:"title"`
	Description string `db:"description"`
}

func (r materialRow) material() events.Material {
	return events.Material{ID: r.ID, EventID: r.EventID, Title: r.Title, Description: r.Description}
}

type materialStore struct{ db *sql.DB }

func (s materialStore) Create(ctx context.Context, m events.Material) error {
	_, err := s.db.ExecContext(ctx, `
		insert into materials (id, event_id, title, description) values ($1, $2, $3, $4)
	`, m.ID, m.EventID, m.Title, m.Description)
	if isCode(err, pgErrForeignKeyViolation) {
		return events.ErrNotFound
	}
	return err
}

func (s materialStore) Get(ctx context.Context, id string) (events.Material, error) {
	var row materialRow
	if err := sqlscan.Get(ctx, s.db, &row, `
		select id, event_id, title, description from materials where id=$1
	`, id); err != nil {
		if sqlscan.NotFound(err) {
			return events.Material{}, events.ErrNotFound
		}
		return events.Material{}, err
	}
	return row.material(), nil
}

func (s materialStore) ListByEvent(ctx context.Context, eventID string) ([]events.Material, error) {
	var rows []materialRow
	if err := sqlscan.Select(ctx, s.db, &rows, `
		select id, event_id, title, description
		from materials
		where event_id=$1
		order by id
	`, eventID); err != nil {
		return nil, err
	}
	out := make([]events.Material, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.material())
	}
	return out, nil
}

func (s materialStore) Update(ctx context.Context, m events.Material) error {
	res, err := s.db.ExecContext(ctx, `
		update materials set title=$2, description=$3 where id=$1
	`, m.ID, m.Title, m.Description)
	if err != nil {
		return err
	}
	return affected(res, events.ErrNotFound)
}

func (s materialStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from materials where id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, events.ErrNotFound)
}
