package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// SQLRepository stores users through database/sql (pgx stdlib driver).
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const userColumns = `SELECT id, full_name, email, role, password_hash, created_at FROM users`

func (r *SQLRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (full_name, email, role, password_hash)
		VALUES ($1, lower($2), $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, u.FullName, u.Email, string(u.Role), u.PasswordHash).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("users: insert failed: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, userColumns+` WHERE id = $1`, id)
}

func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, userColumns+` WHERE email = lower($1)`, email)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: select failed: %w", err)
	}
	return u, nil
}

func (r *SQLRepository) List(ctx context.Context, roles []auth.Role) ([]*User, error) {
	query := userColumns
	var args []any
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, role := range roles {
			names[i] = string(role)
		}
		query += ` WHERE role = ANY($1)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users: list failed: %w", err)
	}
	defer rows.Close()

	out := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan failed: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
