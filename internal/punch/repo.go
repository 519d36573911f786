package punch

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists punch records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindOpen returns the user's open session for the date, or nil when none exists.
func (r *Repository) FindOpen(ctx context.Context, userID, date string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, role, staff_id, date, login_at, logout_at, minutes, created_at
		FROM punch_records
		WHERE user_id = $1 AND date = $2 AND logout_at IS NULL
		ORDER BY login_at DESC
		LIMIT 1
	`, userID, date)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new open session.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO punch_records (id, user_id, name, role, staff_id, date, login_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.Name, rec.Role, nullable(rec.StaffID), rec.Date, rec.LoginAt)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// CloseSession sets logout and computed minutes on an open record. The WHERE
// clause is conditional on the record still being open, so a racing close loses.
func (r *Repository) CloseSession(ctx context.Context, id string, logoutAt time.Time, minutes int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE punch_records
		SET logout_at = $2, minutes = $3
		WHERE id = $1 AND logout_at IS NULL
	`, id, logoutAt, minutes)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// CountClosed returns how many closed sessions the user has on the date.
func (r *Repository) CountClosed(ctx context.Context, userID, date string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM punch_records
		WHERE user_id = $1 AND date = $2 AND logout_at IS NOT NULL
	`, userID, date)
	var n int
	err := row.Scan(&n)
	return n, err
}

// ListRange returns all records with date in [start, end], ordered for aggregation.
func (r *Repository) ListRange(ctx context.Context, start, end string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, role, staff_id, date, login_at, logout_at, minutes, created_at
		FROM punch_records
		WHERE date >= $1 AND date <= $2
		ORDER BY date, user_id, login_at
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, role, staff_id, date, login_at, logout_at, minutes, created_at
		FROM punch_records WHERE id = $1
	`, id)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var staffID sql.NullString
	var logoutAt sql.NullTime
	var minutes sql.NullInt64
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.Role, &staffID,
		&rec.Date, &rec.LoginAt, &logoutAt, &minutes, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	if staffID.Valid {
		rec.StaffID = staffID.String
	}
	if logoutAt.Valid {
		t := logoutAt.Time
		rec.LogoutAt = &t
	}
	if minutes.Valid {
		m := int(minutes.Int64)
		rec.Minutes = &m
	}
	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
