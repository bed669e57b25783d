package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/atinyakov/ResQWave/internal/models"
)

func setupAuthMock(t *testing.T) (*PostgresAuthRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresAuthRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

var userCols = []string{"id", "name", "email", "phone", "role", "password_hash", "failed_attempts", "locked_until"}

func TestFindUserByIdentifier(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	until := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM focal_users WHERE lower(email) = lower($1) OR phone = $1`)).
		WithArgs("09123456789").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("FP001", "Juan", "juan@resqwave.ph", "09123456789", "focalPerson", "hash", 2, until))

	u, err := repo.FindUserByIdentifier(context.Background(), "09123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "FP001" || u.Role != models.RoleFocalPerson || u.FailedAttempts != 2 {
		t.Errorf("unexpected user: %+v", u)
	}
	if u.LockedUntil == nil || !u.LockedUntil.Equal(until) {
		t.Errorf("LockedUntil = %v; want %v", u.LockedUntil, until)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFindUserByID_NotFound(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM focal_users WHERE id = $1`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.FindUserByID(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFindUserByID_Unlocked(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM focal_users WHERE id = $1`)).
		WithArgs("FP001").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("FP001", "Juan", "", "", "admin", "hash", 0, nil))

	u, err := repo.FindUserByID(context.Background(), "FP001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.LockedUntil != nil {
		t.Errorf("LockedUntil = %v; want nil", u.LockedUntil)
	}
	if u.Role != models.RoleAdmin {
		t.Errorf("Role = %q", u.Role)
	}
}

func TestRecordFailedLogin(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE focal_users SET failed_attempts = failed_attempts + 1 WHERE id = $1 RETURNING failed_attempts`)).
		WithArgs("FP001").
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}).AddRow(3))

	n, err := repo.RecordFailedLogin(context.Background(), "FP001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("attempts = %d; want 3", n)
	}
}

func TestLockAndReset(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	until := time.Now().Add(15 * time.Minute)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE focal_users SET locked_until = $2 WHERE id = $1`)).
		WithArgs("FP001", until).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE focal_users SET failed_attempts = 0, locked_until = NULL WHERE id = $1`)).
		WithArgs("FP001").
		WillReturnError(errors.New("conn reset"))

	if err := repo.LockUser(context.Background(), "FP001", until); err != nil {
		t.Fatalf("LockUser: %v", err)
	}
	if err := repo.ResetFailedLogins(context.Background(), "FP001"); err == nil {
		t.Error("expected error from ResetFailedLogins")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPendingLoginLifecycle(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	p := models.PendingCode{TempToken: "tmp-1", UserID: "FP001", CodeHash: "h1", ExpiresAt: now.Add(5 * time.Minute), LastSentAt: now}
	next := models.PendingCode{TempToken: "tmp-2", UserID: "FP001", CodeHash: "h2", ExpiresAt: now.Add(6 * time.Minute), LastSentAt: now.Add(time.Minute)}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO pending_logins`)).
		WithArgs(p.TempToken, p.UserID, p.CodeHash, p.ExpiresAt, p.LastSentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM pending_logins WHERE temp_token = $1`)).
		WithArgs("tmp-1").
		WillReturnRows(sqlmock.NewRows([]string{"temp_token", "user_id", "code_hash", "expires_at", "last_sent_at"}).
			AddRow(p.TempToken, p.UserID, p.CodeHash, p.ExpiresAt, p.LastSentAt))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM pending_logins WHERE temp_token = $1`)).
		WithArgs("tmp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO pending_logins`)).
		WithArgs(next.TempToken, next.UserID, next.CodeHash, next.ExpiresAt, next.LastSentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM pending_logins WHERE temp_token = $1`)).
		WithArgs("tmp-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := repo.CreatePendingLogin(ctx, p); err != nil {
		t.Fatalf("CreatePendingLogin: %v", err)
	}
	got, err := repo.GetPendingLogin(ctx, "tmp-1")
	if err != nil {
		t.Fatalf("GetPendingLogin: %v", err)
	}
	if *got != p {
		t.Errorf("GetPendingLogin = %+v; want %+v", *got, p)
	}
	if err := repo.ReplacePendingLogin(ctx, "tmp-1", next); err != nil {
		t.Fatalf("ReplacePendingLogin: %v", err)
	}
	if err := repo.DeletePendingLogin(ctx, "tmp-2"); err != nil {
		t.Fatalf("DeletePendingLogin: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetPendingLogin_NotFound(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM pending_logins WHERE temp_token = $1`)).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"temp_token", "user_id", "code_hash", "expires_at", "last_sent_at"}))

	if _, err := repo.GetPendingLogin(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestConsumePendingLogin(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"consumed", 1, nil},
		{"already consumed", 0, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupAuthMock(t)
			defer cleanup()

			mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM pending_logins WHERE temp_token = $1`)).
				WithArgs("tmp-1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.ConsumePendingLogin(context.Background(), "tmp-1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v; want %v", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestRecordFailedCode(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	q := regexp.QuoteMeta(`UPDATE pending_logins SET attempts = attempts + 1 WHERE temp_token = $1 RETURNING attempts`)
	mock.ExpectQuery(q).WithArgs("tmp-1").WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))
	mock.ExpectQuery(q).WithArgs("gone").WillReturnRows(sqlmock.NewRows([]string{"attempts"}))

	n, err := repo.RecordFailedCode(context.Background(), "tmp-1")
	if err != nil || n != 2 {
		t.Errorf("RecordFailedCode = %d, %v; want 2, nil", n, err)
	}
	if _, err := repo.RecordFailedCode(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestReplacePendingLogin_Missing(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM pending_logins WHERE temp_token = $1`)).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReplacePendingLogin(context.Background(), "gone", models.PendingCode{TempToken: "tmp-2"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRevocation(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2) ON CONFLICT DO NOTHING`)).
		WithArgs("jti-1", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`)).
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`)).
		WithArgs("jti-2").
		WillReturnError(errors.New("query failed"))

	if err := repo.RevokeToken(context.Background(), "jti-1", exp); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	revoked, err := repo.IsRevoked(context.Background(), "jti-1")
	if err != nil || !revoked {
		t.Errorf("IsRevoked(jti-1) = %v, %v; want true, nil", revoked, err)
	}
	if _, err := repo.IsRevoked(context.Background(), "jti-2"); err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
