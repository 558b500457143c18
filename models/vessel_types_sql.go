package models

import (
	"context"
	"database/sql"
	"time"
)

type sqlVesselTypeRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLVesselTypeRepository(db *sql.DB, timeout time.Duration) VesselTypeRepository {
	return &sqlVesselTypeRepo{db: db, timeout: timeout}
}

func (r *sqlVesselTypeRepo) GetAll(ctx context.Context) ([]VesselType, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM vessel_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []VesselType{}
	for rows.Next() {
		var vt VesselType
		if err := rows.Scan(&vt.ID, &vt.Name); err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, rows.Err()
}

func (r *sqlVesselTypeRepo) Create(ctx context.Context, vt *VesselType) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO vessel_types(id, name) VALUES ($1,$2)`, vt.ID, vt.Name)
	return err
}
