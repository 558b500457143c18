package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// foreign_key_violation
const pqForeignKeyViolation = "23503"

type sqlRegistrationRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRegistrationRepository(db *sql.DB, timeout time.Duration) RegistrationRepository {
	return &sqlRegistrationRepo{db: db, timeout: timeout}
}

func (r *sqlRegistrationRepo) Create(ctx context.Context, reg *Registration, admit Admission) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The event row stays share-locked until commit, so its start date cannot
	// move between the admission check and the inserts.
	var start sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT registration_start_date FROM events WHERE id=$1 FOR SHARE`, reg.EventID).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRegistrationClosed
	}
	if err != nil {
		return fmt.Errorf("lock event: %w", err)
	}
	var startPtr *time.Time
	if start.Valid {
		startPtr = &start.Time
	}
	if !admit(startPtr) {
		return ErrRegistrationClosed
	}

	rt := reg.Registrant
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registrants(id, first_name, last_name, email, date_of_birth, place_of_birth)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rt.ID, rt.FirstName, rt.LastName, rt.Email, rt.DateOfBirth, rt.PlaceOfBirth); err != nil {
		return mapWriteErr("insert registrant", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registrations(id, registrant_id, event_id, music_request, association)
		VALUES ($1,$2,$3,$4,$5)`,
		reg.ID, rt.ID, reg.EventID, nullString(reg.MusicRequest), nullString(reg.Association)); err != nil {
		return mapWriteErr("insert registration", err)
	}

	if err := insertParticipants(ctx, tx, reg.ID, reg.Participants); err != nil {
		return mapWriteErr("insert participants", err)
	}

	v := reg.Vessel
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vessels(id, registration_id, name, vessel_type_id) VALUES ($1,$2,$3,$4)`,
		v.ID, reg.ID, v.Name, v.VesselTypeID); err != nil {
		return mapWriteErr("insert vessel", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertParticipants writes all participants in one multi-row statement.
func insertParticipants(ctx context.Context, tx *sql.Tx, registrationID string, ps []Participant) error {
	if len(ps) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(ps)*5)
	)
	sb.WriteString(`INSERT INTO participants(id, registration_id, first_name, last_name, date_of_birth) VALUES `)
	for i, p := range ps {
		if i > 0 {
			sb.WriteString(",")
		}
		n := i * 5
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, p.ID, registrationID, p.FirstName, p.LastName, p.DateOfBirth)
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

func mapWriteErr(step string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		switch {
		case strings.Contains(pqErr.Constraint, "vessel_type"):
			return &UnknownReferenceError{Field: "vessel.vessel_type_id"}
		case strings.Contains(pqErr.Constraint, "event"):
			return &UnknownReferenceError{Field: "event"}
		}
	}
	return fmt.Errorf("%s: %w", step, err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
