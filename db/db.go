package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	sqldb.SetMaxOpenConns(20)
	sqldb.SetMaxIdleConns(10)
	return sqldb, nil
}

// tables are created in dependency order; every statement is idempotent.
var tables = []struct {
	name string
	ddl  string
}{
	{"events", `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		year INT NOT NULL,
		registration_start_date TIMESTAMPTZ
	);`},
	{"vessel_types", `
	CREATE TABLE IF NOT EXISTS vessel_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);`},
	{"registrants", `
	CREATE TABLE IF NOT EXISTS registrants (
		id UUID PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		date_of_birth DATE NOT NULL,
		place_of_birth TEXT NOT NULL
	);`},
	{"registrations", `
	CREATE TABLE IF NOT EXISTS registrations (
		id UUID PRIMARY KEY,
		registrant_id UUID NOT NULL UNIQUE REFERENCES registrants(id),
		event_id TEXT NOT NULL REFERENCES events(id),
		music_request TEXT,
		association TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"participants", `
	CREATE TABLE IF NOT EXISTS participants (
		id UUID PRIMARY KEY,
		registration_id UUID NOT NULL REFERENCES registrations(id),
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		date_of_birth DATE NOT NULL
	);`},
	{"vessels", `
	CREATE TABLE IF NOT EXISTS vessels (
		id UUID PRIMARY KEY,
		registration_id UUID NOT NULL UNIQUE REFERENCES registrations(id),
		name TEXT NOT NULL,
		vessel_type_id TEXT NOT NULL REFERENCES vessel_types(id)
	);`},
	{"admins", `
	CREATE TABLE IF NOT EXISTS admins (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	);`},
}

// CreateTables bootstraps the schema.
func CreateTables(ctx context.Context, sqldb *sql.DB) error {
	for _, t := range tables {
		if _, err := sqldb.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create %s table: %w", t.name, err)
		}
	}
	return nil
}
