package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// expiredState lists the cleanup statements run on every tick, keyed by what
// they remove. Each takes the current time as $1.
var expiredState = []struct {
	what  string
	query string
}{
	{"pending logins", `DELETE FROM pending_logins WHERE expires_at < $1`},
	{"revoked tokens", `DELETE FROM revoked_tokens WHERE expires_at < $1`},
	{"lockouts", `
		UPDATE focal_users SET locked_until = NULL, failed_attempts = 0
		 WHERE locked_until IS NOT NULL AND locked_until < $1`},
}

// StartExpiredStateCleaner periodically removes expired pending logins,
// revoked-token rows past their token expiry, and lapsed lockouts.
func StartExpiredStateCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				for _, st := range expiredState {
					res, err := db.ExecContext(ctx, st.query, now)
					if err != nil {
						log.Error("failed to clean expired state", zap.String("what", st.what), zap.Error(err))
						continue
					}
					if rows, _ := res.RowsAffected(); rows > 0 {
						log.Info("cleaned expired state", zap.String("what", st.what), zap.Int64("removed", rows))
					}
				}
			}
		}
	}()
}
