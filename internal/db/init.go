// Package db opens the development backend database and keeps its
// short-lived state tidy.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS focal_users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT UNIQUE,
    phone TEXT UNIQUE,
    role TEXT NOT NULL DEFAULT 'focalPerson',
    password_hash TEXT NOT NULL,
    failed_attempts INT NOT NULL DEFAULT 0,
    locked_until TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS pending_logins (
    temp_token TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES focal_users(id) ON DELETE CASCADE,
    code_hash TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    last_sent_at TIMESTAMPTZ NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti TEXT PRIMARY KEY,
    expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS neighborhoods (
    id TEXT PRIMARY KEY,
    focal_user_id TEXT NOT NULL REFERENCES focal_users(id) ON DELETE CASCADE,
    terminal_id TEXT NOT NULL DEFAULT '',
    address TEXT,
    no_of_households INT NOT NULL DEFAULT 0,
    no_of_residents INT NOT NULL DEFAULT 0,
    flood_subsidence TEXT NOT NULL DEFAULT '',
    hazards TEXT[] NOT NULL DEFAULT '{}',
    other_information TEXT NOT NULL DEFAULT '',
    alt_first_name TEXT NOT NULL DEFAULT '',
    alt_last_name TEXT NOT NULL DEFAULT '',
    alt_email TEXT NOT NULL DEFAULT '',
    alt_number TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

// DemoAccount is the focal person created by SeedDemo.
type DemoAccount struct {
	UserID       string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
}

// SeedDemo inserts a demo focal person with a neighborhood, and two nearby
// neighborhoods. Existing rows are left untouched.
func SeedDemo(ctx context.Context, db *sql.DB, acc DemoAccount) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	users := []struct{ id, name, email, phone string }{
		{acc.UserID, acc.Name, acc.Email, acc.Phone},
		{acc.UserID + "-N1", "Maria Santos", "", ""},
		{acc.UserID + "-N2", "Pedro Reyes", "", ""},
	}
	for _, u := range users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO focal_users (id, name, email, phone, role, password_hash)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), 'focalPerson', $5)
			ON CONFLICT DO NOTHING
		`, u.id, u.name, u.email, u.phone, acc.PasswordHash)
		if err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
	}

	hoods := []struct {
		id, user, terminal, address string
		hazards                     []string
	}{
		{"N-001", acc.UserID, "RSQW-001", `{"coordinates":"120.9842, 14.5995","address":"Tondo, Manila"}`, []string{"Strong water current"}},
		{"N-002", acc.UserID + "-N1", "RSQW-002", `{"lat":14.6010,"lng":120.9860,"address":"Binondo, Manila"}`, []string{"Debris"}},
		{"N-003", acc.UserID + "-N2", "RSQW-003", `{"coordinates":"121.0437, 14.6760","address":"Quezon City"}`, []string{}},
	}
	for _, h := range hoods {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO neighborhoods (id, focal_user_id, terminal_id, address, hazards)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING
		`, h.id, h.user, h.terminal, h.address, pq.Array(h.hazards))
		if err != nil {
			return fmt.Errorf("seed neighborhood: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
