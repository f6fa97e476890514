package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/langalex/henry/internal/auth"
)

type sessionStore struct{ db *sql.DB }

func (s sessionStore) Create(ctx context.Context, sess auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, expires_at) values ($1, $2, $3)
	`, sess.ID, sess.UserID, sess.ExpiresAt)
	switch {
	case isCode(err, pgErrForeignKeyViolation):
		return auth.ErrNotFound
	case isCode(err, pgErrUniqueViolation):
		return auth.ErrConflict
	}
	return err
}

func (s sessionStore) GetWithUser(ctx context.Context, id string) (auth.Session, auth.User, error) {
	var row struct {
		ID        string    `db:"id"`
		ExpiresAt time.Time `db:"expires_at"`
		UserID    string    `db:"user_id"`
		Email     string    `db:"email"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := sqlscan.Get(ctx, s.db, &row, `
		select s.id, s.expires_at, u.id as user_id, u.email, u.name, u.created_at
		from sessions s
		join users u on u.id = s.user_id
		where s.id=$1
	`, id)
	if err != nil {
		if sqlscan.NotFound(err) {
			return auth.Session{}, auth.User{}, auth.ErrNotFound
		}
		return auth.Session{}, auth.User{}, err
	}
	u := auth.User{ID: row.UserID, Email: row.Email, Name: row.Name, CreatedAt: row.CreatedAt}
	return auth.Session{ID: row.ID, UserID: u.ID, ExpiresAt: row.ExpiresAt}, u, nil
}

func (s sessionStore) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `update sessions set expires_at=$2 where id=$1`, id, expiresAt)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func (s sessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from sessions where id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

type tokenStore struct{ db *sql.DB }

func (s tokenStore) Create(ctx context.Context, t auth.EmailToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into email_verification_tokens (id, user_id, expires_at)
		values ($1, $2, $3)
		on conflict (id) do update
		set user_id = excluded.user_id, expires_at = excluded.expires_at
	`, t.ID, t.UserID, t.ExpiresAt)
	if isCode(err, pgErrForeignKeyViolation) {
		return auth.ErrNotFound
	}
	return err
}

// Consume deletes and returns the token in one statement, so only one caller
// can observe the row.
func (s tokenStore) Consume(ctx context.Context, id string) (auth.EmailToken, error) {
	var row struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		ExpiresAt time.Time `db:"expires_at"`
	}
	err := sqlscan.Get(ctx, s.db, &row, `
		delete from email_verification_tokens
		where id=$1
		returning id, user_id, expires_at
	`, id)
	if err != nil {
		if sqlscan.NotFound(err) {
			return auth.EmailToken{}, auth.ErrNotFound
		}
		return auth.EmailToken{}, err
	}
	return auth.EmailToken{ID: row.ID, UserID: row.UserID, ExpiresAt: row.ExpiresAt}, nil
}
