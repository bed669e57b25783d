// Package models defines the core data structures shared by the focal client
// and the development backend.
package models

import (
	"fmt"
	"time"
)

// Role is the backend role attached to an authenticated user.
type Role string

const (
	// RoleFocalPerson is a neighborhood focal person.
	RoleFocalPerson Role = "focalPerson"
	// RoleAdmin is a backend administrator.
	RoleAdmin Role = "admin"
	// RoleDispatcher is an emergency dispatcher.
	RoleDispatcher Role = "dispatcher"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleFocalPerson, RoleAdmin, RoleDispatcher:
		return true
	}
	return false
}

// UserProfile is the user record returned by the backend after verification.
// It is replaced wholesale on every re-login.
type UserProfile struct {
	// ID is the backend identifier of the user.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Email is the contact email.
	Email string `json:"email"`
	// Role is the backend role.
	Role Role `json:"role"`
}

// Credential is the persisted session state. User is nil whenever
// SessionToken is empty.
type Credential struct {
	SessionToken string
	User         *UserProfile
}

// Empty reports whether c represents the logged-out state.
func (c Credential) Empty() bool {
	return c.SessionToken == ""
}

// PendingLogin is a login accepted by the backend and waiting for its
// one-time code. It is never persisted.
type PendingLogin struct {
	// TempToken is the short-lived token carried into verification.
	TempToken string
	// Identifier is the normalized email or phone number.
	Identifier string
	// IssuedAt is when the backend accepted the credentials or resent the code.
	IssuedAt time.Time
	// ExpiresAt is advisory only; the backend enforces the real expiry.
	ExpiresAt time.Time
}

// Expired reports whether the advisory expiry has passed. Display only.
func (p PendingLogin) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// ResendCountdown is the state of the resend cooldown on a verification screen.
type ResendCountdown struct {
	RemainingSeconds int
	Enabled          bool
}

// Label renders the resend button text.
func (c ResendCountdown) Label() string {
	if c.Enabled {
		return "Resend"
	}
	return fmt.Sprintf("Resend (%ds)", c.RemainingSeconds)
}
