package models

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type sqlEventRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLEventRepository(db *sql.DB, timeout time.Duration) EventRepository {
	return &sqlEventRepo{db: db, timeout: timeout}
}

func (r *sqlEventRepo) Current(ctx context.Context, year int) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		e     Event
		start sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, year, registration_start_date FROM events WHERE year=$1 LIMIT 1`, year).
		Scan(&e.ID, &e.Year, &start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if start.Valid {
		e.RegistrationStartDate = &start.Time
	}
	return &e, nil
}

func (r *sqlEventRepo) FindOpen(ctx context.Context, id string, now time.Time, unset UnsetStart) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM events
		WHERE id=$1 AND (registration_start_date <= $2 OR ($3 AND registration_start_date IS NULL))
		LIMIT 1`, id, now, bool(unset)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *sqlEventRepo) Create(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events(id, year, registration_start_date) VALUES ($1,$2,$3)`,
		e.ID, e.Year, nullTime(e.RegistrationStartDate))
	return err
}

func (r *sqlEventRepo) SetRegistrationStart(ctx context.Context, id string, start *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET registration_start_date=$2 WHERE id=$1`, id, nullTime(start))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
