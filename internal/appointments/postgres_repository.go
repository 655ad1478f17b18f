package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
)

// PgxPool is the subset of *pgxpool.Pool used here; pgxmock satisfies it.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in Postgres. Per-date exclusion
// uses a transaction-scoped advisory lock keyed on the date.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const selectColumns = `
	SELECT id, COALESCE(owner_id, 0), student_name, COALESCE(student_email, ''),
		to_char(appointment_date, 'YYYY-MM-DD'), to_char(appointment_time, 'HH24:MI:SS'),
		service_type, urgency, reason, booking_mode, status,
		COALESCE(admin_note, ''), COALESCE(diagnosis, ''), created_at, updated_at
	FROM appointments`

const activeTimesQuery = `
	SELECT to_char(appointment_time, 'HH24:MI:SS')
	FROM appointments
	WHERE appointment_date = $1::date
		AND status IN ('pending', 'approved')
		AND id <> $2
	ORDER BY appointment_time`

func dateLockKey(d clinictime.Date) string {
	return "appointments:" + d.String()
}

func (r *PostgresRepository) WithDateLock(ctx context.Context, date clinictime.Date, fn func(tx DateTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, dateLockKey(date)); err != nil {
		return fmt.Errorf("appointments: acquire date lock: %w", err)
	}
	if err := fn(&pgDateTx{q: tx, date: date}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ActiveTimes(ctx context.Context, date clinictime.Date) ([]clinictime.Clock, error) {
	return activeTimes(ctx, r.pool, date, 0)
}

func activeTimes(ctx context.Context, q querier, date clinictime.Date, excludeID int64) ([]clinictime.Clock, error) {
	rows, err := q.Query(ctx, activeTimesQuery, date.String(), excludeID)
	if err != nil {
		return nil, fmt.Errorf("appointments: load active times: %w", err)
	}
	defer rows.Close()

	var out []clinictime.Clock
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("appointments: scan active time: %w", err)
		}
		c, err := clinictime.ParseClock(raw)
		if err != nil {
			return nil, fmt.Errorf("appointments: stored time %q: %w", raw, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Appointment, error) {
	return getAppointment(ctx, r.pool, selectColumns+` WHERE id = $1`, id)
}

func getAppointment(ctx context.Context, q querier, query string, id int64) (*Appointment, error) {
	a, err := scanAppointment(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]*Appointment, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.OwnerID != nil {
		add("owner_id = $%d", *filter.OwnerID)
	}
	if filter.StudentEmail != "" {
		add("lower(student_email) = lower($%d)", filter.StudentEmail)
	}
	if filter.StudentName != "" {
		add("lower(student_name) = lower($%d)", filter.StudentName)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Urgency != "" {
		add("lower(urgency) = lower($%d)", filter.Urgency)
	}
	if filter.Date != nil {
		add("appointment_date = $%d::date", filter.Date.String())
	}

	query := selectColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY appointment_date DESC, appointment_time DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	out := make([]*Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("appointments: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type pgDateTx struct {
	q    querier
	date clinictime.Date
}

func (t *pgDateTx) ActiveTimes(ctx context.Context, excludeID int64) ([]clinictime.Clock, error) {
	return activeTimes(ctx, t.q, t.date, excludeID)
}

func (t *pgDateTx) Insert(ctx context.Context, a *Appointment) error {
	query := `
		INSERT INTO appointments (
			owner_id, student_name, student_email, appointment_date, appointment_time,
			service_type, urgency, reason, booking_mode, status
		)
		VALUES ($1, $2, NULLIF($3, ''), $4::date, $5::time, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err := t.q.QueryRow(ctx, query,
		a.OwnerID,
		a.StudentName,
		a.StudentEmail,
		a.Date.String(),
		a.Time.String(),
		a.ServiceType,
		a.Urgency,
		a.Reason,
		string(a.BookingMode),
		string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

func (t *pgDateTx) Get(ctx context.Context, id int64) (*Appointment, error) {
	return getAppointment(ctx, t.q, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgDateTx) Move(ctx context.Context, a *Appointment) error {
	query := `
		UPDATE appointments
		SET appointment_date = $2::date,
			appointment_time = $3::time,
			status = $4,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	return t.update(ctx, a, "move", query, a.ID, a.Date.String(), a.Time.String(), string(a.Status))
}

func (t *pgDateTx) SetOutcome(ctx context.Context, a *Appointment) error {
	query := `
		UPDATE appointments
		SET status = $2,
			admin_note = NULLIF($3, ''),
			diagnosis = NULLIF($4, ''),
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	return t.update(ctx, a, "set outcome", query, a.ID, string(a.Status), a.AdminNote, a.Diagnosis)
}

func (t *pgDateTx) update(ctx context.Context, a *Appointment, op, query string, args ...any) error {
	var updatedAt time.Time
	if err := t.q.QueryRow(ctx, query, args...).Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("appointments: %s failed: %w", op, err)
	}
	a.UpdatedAt = updatedAt
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                Appointment
		ownerID          int64
		rawDate, rawTime string
		mode, status     string
	)
	if err := row.Scan(
		&a.ID,
		&ownerID,
		&a.StudentName,
		&a.StudentEmail,
		&rawDate,
		&rawTime,
		&a.ServiceType,
		&a.Urgency,
		&a.Reason,
		&mode,
		&status,
		&a.AdminNote,
		&a.Diagnosis,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if ownerID != 0 {
		a.OwnerID = &ownerID
	}
	var err error
	if a.Date, err = clinictime.ParseDate(rawDate); err != nil {
		return nil, fmt.Errorf("stored date %q: %w", rawDate, err)
	}
	if a.Time, err = clinictime.ParseClock(rawTime); err != nil {
		return nil, fmt.Errorf("stored time %q: %w", rawTime, err)
	}
	a.BookingMode = BookingMode(mode)
	a.Status = Status(status)
	return &a, nil
}
