// Package repository provides PostgreSQL persistence for the development
// backend: focal accounts, pending logins, revoked tokens and neighborhoods.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/ResQWave/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// PostgresAuthRepository stores accounts, pending logins and token revocations.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

const userColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), role, password_hash, failed_attempts, locked_until`

func scanUser(row interface{ Scan(...any) error }) (*models.FocalUser, error) {
	var (
		u      models.FocalUser
		role   string
		locked sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.PasswordHash, &u.FailedAttempts, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = models.Role(role)
	if locked.Valid {
		t := locked.Time
		u.LockedUntil = &t
	}
	return &u, nil
}

// FindUserByIdentifier looks a user up by email or phone number.
func (r *PostgresAuthRepository) FindUserByIdentifier(ctx context.Context, identifier string) (*models.FocalUser, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM focal_users WHERE lower(email) = lower($1) OR phone = $1`,
		identifier,
	)
	return scanUser(row)
}

// FindUserByID looks a user up by id.
func (r *PostgresAuthRepository) FindUserByID(ctx context.Context, id string) (*models.FocalUser, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM focal_users WHERE id = $1`, id)
	return scanUser(row)
}

// RecordFailedLogin increments the user's failed-attempt counter and returns
// the new count.
func (r *PostgresAuthRepository) RecordFailedLogin(ctx context.Context, userID string) (int, error) {
	var attempts int
	err := r.DB.QueryRowContext(ctx,
		`UPDATE focal_users SET failed_attempts = failed_attempts + 1 WHERE id = $1 RETURNING failed_attempts`,
		userID,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("record failed login: %w", err)
	}
	return attempts, nil
}

// LockUser locks the account until the given time.
func (r *PostgresAuthRepository) LockUser(ctx context.Context, userID string, until time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE focal_users SET locked_until = $2 WHERE id = $1`, userID, until)
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// ResetFailedLogins clears the failed-attempt counter and any lock.
func (r *PostgresAuthRepository) ResetFailedLogins(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE focal_users SET failed_attempts = 0, locked_until = NULL WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("reset failed logins: %w", err)
	}
	return nil
}

// CreatePendingLogin stores a new pending login.
func (r *PostgresAuthRepository) CreatePendingLogin(ctx context.Context, p models.PendingCode) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO pending_logins (temp_token, user_id, code_hash, expires_at, last_sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.TempToken, p.UserID, p.CodeHash, p.ExpiresAt, p.LastSentAt)
	if err != nil {
		return fmt.Errorf("create pending login: %w", err)
	}
	return nil
}

// GetPendingLogin returns the pending login for tempToken.
func (r *PostgresAuthRepository) GetPendingLogin(ctx context.Context, tempToken string) (*models.PendingCode, error) {
	var p models.PendingCode
	err := r.DB.QueryRowContext(ctx, `
		SELECT temp_token, user_id, code_hash, expires_at, last_sent_at
		  FROM pending_logins WHERE temp_token = $1
	`, tempToken).Scan(&p.TempToken, &p.UserID, &p.CodeHash, &p.ExpiresAt, &p.LastSentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending login: %w", err)
	}
	return &p, nil
}

// ReplacePendingLogin swaps the pending login oldToken for p in one transaction.
func (r *PostgresAuthRepository) ReplacePendingLogin(ctx context.Context, oldToken string, p models.PendingCode) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM pending_logins WHERE temp_token = $1`, oldToken)
	if err != nil {
		return fmt.Errorf("delete pending login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO pending_logins (temp_token, user_id, code_hash, expires_at, last_sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.TempToken, p.UserID, p.CodeHash, p.ExpiresAt, p.LastSentAt)
	if err != nil {
		return fmt.Errorf("insert pending login: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ConsumePendingLogin deletes the pending login for tempToken and reports
// ErrNotFound when it was already gone. Only one caller can consume a token.
func (r *PostgresAuthRepository) ConsumePendingLogin(ctx context.Context, tempToken string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM pending_logins WHERE temp_token = $1`, tempToken)
	if err != nil {
		return fmt.Errorf("consume pending login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordFailedCode increments the wrong-code counter of a pending login and
// returns the new count.
func (r *PostgresAuthRepository) RecordFailedCode(ctx context.Context, tempToken string) (int, error) {
	var attempts int
	err := r.DB.QueryRowContext(ctx,
		`UPDATE pending_logins SET attempts = attempts + 1 WHERE temp_token = $1 RETURNING attempts`,
		tempToken,
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record failed code: %w", err)
	}
	return attempts, nil
}

// DeletePendingLogin removes a pending login; a missing row is not an error.
func (r *PostgresAuthRepository) DeletePendingLogin(ctx context.Context, tempToken string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM pending_logins WHERE temp_token = $1`, tempToken)
	if err != nil {
		return fmt.Errorf("delete pending login: %w", err)
	}
	return nil
}

// RevokeToken records a session token id as revoked until its expiry.
func (r *PostgresAuthRepository) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		jti, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id has been revoked.
func (r *PostgresAuthRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`,
		jti,
	).Scan(&revoked)
	return revoked, err
}
