package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/langalex/henry/internal/auth"
)

type userRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) user() auth.User {
	return auth.User{ID: r.ID, Email: r.Email, Name: r.Name, CreatedAt: r.CreatedAt}
}

type userStore struct{ db *sql.DB }

// Register holds an exclusive lock on users so the emptiness check and the
// insert are one step for concurrent first signups.
func (s userStore) Register(ctx context.Context, u auth.User, bootstrap []auth.Role) ([]auth.Role, error) {
	granted := []auth.Role{}
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `lock table users in share row exclusive mode`); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, `select count(*) from users`).Scan(&n); err != nil {
			return err
		}
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		if n == 0 {
			granted = append(granted, bootstrap...)
		}
		return insertRoles(ctx, tx, u.ID, granted)
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

func (s userStore) Create(ctx context.Context, u auth.User, roles []auth.Role) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		return insertRoles(ctx, tx, u.ID, roles)
	})
}

func (s userStore) Get(ctx context.Context, id string) (auth.User, error) {
	return s.one(ctx, `select id, email, name, created_at from users where id=$1`, id)
}

func (s userStore) GetByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.one(ctx, `select id, email, name, created_at from users where email=$1`, email)
}

func (s userStore) one(ctx context.Context, query string, arg any) (auth.User, error) {
	var row userRow
	if err := sqlscan.Get(ctx, s.db, &row, query, arg); err != nil {
		if sqlscan.NotFound(err) {
			return auth.User{}, auth.ErrNotFound
		}
		return auth.User{}, err
	}
	return row.user(), nil
}

func (s userStore) List(ctx context.Context) ([]auth.User, error) {
	var rows []userRow
	if err := sqlscan.Select(ctx, s.db, &rows, `
		select id, email, name, created_at
		from users
		order by name, id
	`); err != nil {
		return nil, err
	}
	out := make([]auth.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.user())
	}
	return out, nil
}

func (s userStore) Update(ctx context.Context, u auth.User, roles []auth.Role) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `update users set email=$2, name=$3 where id=$1`, u.ID, u.Email, u.Name)
		if err != nil {
			if isCode(err, pgErrUniqueViolation) {
				return auth.ErrConflict
			}
			return err
		}
		if err := affected(res, auth.ErrNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id=$1`, u.ID); err != nil {
			return err
		}
		return insertRoles(ctx, tx, u.ID, roles)
	})
}

// Delete relies on the schema to cascade to roles, sessions, tokens and
// assignments, and to null audit references.
func (s userStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func insertUser(ctx context.Context, tx *sql.Tx, u auth.User) error {
	_, err := tx.ExecContext(ctx, `
		insert into users (id, email, name, created_at)
		values ($1, $2, $3, $4)
	`, u.ID, u.Email, u.Name, u.CreatedAt)
	if isCode(err, pgErrUniqueViolation) {
		return auth.ErrConflict
	}
	return err
}

func insertRoles(ctx context.Context, tx *sql.Tx, userID string, roles []auth.Role) error {
	for _, r := range roles {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role) values ($1, $2)
			on conflict do nothing
		`, userID, string(r)); err != nil {
			if isCode(err, pgErrForeignKeyViolation) {
				return auth.ErrNotFound
			}
			return err
		}
	}
	return nil
}

type roleStore struct{ db *sql.DB }

func (s roleStore) ForUser(ctx context.Context, userID string) ([]auth.Role, error) {
	var names []string
	if err := sqlscan.Select(ctx, s.db, &names, `
		select role from user_roles where user_id=$1 order by role
	`, userID); err != nil {
		return nil, err
	}
	out := make([]auth.Role, 0, len(names))
	for _, n := range names {
		out = append(out, auth.Role(n))
	}
	return out, nil
}

func (s roleStore) All(ctx context.Context) (map[string][]auth.Role, error) {
	var rows []struct {
		UserID string `db:"user_id"`
		Role   string `db:"role"`
	}
	if err := sqlscan.Select(ctx, s.db, &rows, `
		select user_id, role from user_roles order by user_id, role
	`); err != nil {
		return nil, err
	}
	out := make(map[string][]auth.Role)
	for _, r := range rows {
		out[r.UserID] = append(out[r.UserID], auth.Role(r.Role))
	}
	return out, nil
}

func (s roleStore) Add(ctx context.Context, userID string, role auth.Role) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role) values ($1, $2)
		on conflict do nothing
	`, userID, string(role))
	if isCode(err, pgErrForeignKeyViolation) {
		return auth.ErrNotFound
	}
	return err
}

func (s roleStore) Replace(ctx context.Context, userID string, roles []auth.Role) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `select id from users where id=$1 for update`, userID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id=$1`, userID); err != nil {
			return err
		}
		return insertRoles(ctx, tx, userID, roles)
	})
}
