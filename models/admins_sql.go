package models

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tobbedansen/utils"
)

type sqlAdminRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLAdminRepository(db *sql.DB, timeout time.Duration) AdminRepository {
	return &sqlAdminRepo{db: db, timeout: timeout}
}

func (r *sqlAdminRepo) Ensure(ctx context.Context, a *Admin) error {
	hashed, err := utils.HashPassword(a.Password)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO admins(email, password) VALUES ($1,$2) ON CONFLICT (email) DO NOTHING`,
		a.Email, hashed)
	return err
}

func (r *sqlAdminRepo) ValidateCredentials(ctx context.Context, email, plain string) (Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var a Admin
	err := r.db.QueryRowContext(ctx, `SELECT id, email, password FROM admins WHERE email=$1`, email).
		Scan(&a.ID, &a.Email, &a.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return Admin{}, ErrInvalidCredentials
	}
	if err != nil {
		return Admin{}, err
	}

	if !utils.CheckPasswordHash(plain, a.Password) {
		return Admin{}, ErrInvalidCredentials
	}
	return a, nil
}
