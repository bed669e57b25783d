// Package http provides the HTTP handlers of the development backend:
// the two-step focal login, session endpoints and neighborhood data.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/ResQWave/internal/middleware"
	"github.com/atinyakov/ResQWave/internal/models"
	"github.com/atinyakov/ResQWave/internal/service"
	"github.com/atinyakov/ResQWave/internal/token"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	Login(ctx context.Context, identifier, password string) (*service.LoginResult, error)
	Verify(ctx context.Context, tempToken, code string) (*service.VerifyResult, error)
	Resend(ctx context.Context, tempToken string) (*service.LoginResult, error)
	Me(ctx context.Context, userID string) (*models.UserProfile, error)
	Logout(ctx context.Context, claims *token.Claims) error
}

// AuthHandler handles the focal login and session endpoints.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
}

// LoginRequest is the JSON payload of POST /focal/login.
type LoginRequest struct {
	EmailOrNumber string `json:"emailOrNumber"`
	Password      string `json:"password"`
}

// VerifyRequest is the JSON payload of POST /focal/verify.
type VerifyRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

// ResendRequest is the JSON payload of POST /focal/resend.
type ResendRequest struct {
	TempToken string `json:"tempToken"`
}

// Login checks credentials. Invalid credentials and lockouts are answered
// with 200 and a message; success carries the temporary token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	res, err := h.AuthService.Login(r.Context(), req.EmailOrNumber, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Verify exchanges the temporary token and code for a session token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	res, err := h.AuthService.Verify(r.Context(), req.TempToken, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Resend issues a new code and temporary token.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	res, err := h.AuthService.Resend(r.Context(), req.TempToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Me returns the authenticated user as {"user": ...}.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.AuthService.Me(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Logout revokes the session token of the request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}
	if err := h.AuthService.Logout(r.Context(), claims); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeServiceError maps service errors to statuses and user-facing messages.
// 401/403 are reserved for session failures, so code problems answer 400.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Missing or invalid fields")
	case errors.Is(err, service.ErrPendingNotFound):
		writeError(w, http.StatusBadRequest, "Verification session expired. Please login again.")
	case errors.Is(err, service.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "Invalid verification code")
	case errors.Is(err, service.ErrTooManyCodes):
		writeError(w, http.StatusBadRequest, "Too many invalid codes. Please login again.")
	case errors.Is(err, service.ErrResendTooSoon):
		writeError(w, http.StatusTooManyRequests, "Please wait before requesting a new code")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrNeighborhoodNotFound):
		writeError(w, http.StatusNotFound, "Neighborhood not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
