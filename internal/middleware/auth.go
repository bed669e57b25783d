// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/token"
	"go.uber.org/zap"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// TokenParser validates a session token.
type TokenParser interface {
	Parse(tokenString string) (*token.Claims, error)
}

// RevocationChecker reports whether a token id was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// BearerAuth rejects requests without a valid, unrevoked session token with
// 401 and a JSON {message}. On success the claims are stored in the request
// context.
func BearerAuth(parser TokenParser, revocations RevocationChecker, log *zap.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, "Missing authorization token")
				return
			}
			claims, err := parser.Parse(raw)
			if err != nil {
				log.Debug("rejected session token", zap.Error(err))
				unauthorized(w, "Invalid or expired token")
				return
			}
			revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				log.Error("revocation lookup failed", zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "internal error"})
				return
			}
			if revoked {
				unauthorized(w, "Session has been logged out")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// ClaimsFromContext returns the session claims stored by BearerAuth, or nil.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	c, _ := ctx.Value(claimsKey).(*token.Claims)
	return c
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}
