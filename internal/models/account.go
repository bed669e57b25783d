package models

import "time"

// FocalUser is a backend account row.
type FocalUser struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	Role           Role
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
}

// Profile returns the public part of u.
func (u FocalUser) Profile() UserProfile {
	return UserProfile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Locked reports whether u is locked out at now.
func (u FocalUser) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// PendingCode is the backend side of a PendingLogin: the hashed one-time code
// waiting to be exchanged for a session.
type PendingCode struct {
	TempToken  string
	UserID     string
	CodeHash   string
	ExpiresAt  time.Time
	LastSentAt time.Time
}

// NeighborhoodRecord is a neighborhood row joined with its focal person.
type NeighborhoodRecord struct {
	ID               string
	FocalUserID      string
	FocalName        string
	FocalEmail       string
	FocalPhone       string
	TerminalID       string
	Address          *string
	Households       int
	Residents        int
	FloodSubsidence  string
	Hazards          []string
	OtherInformation string
	AltFirstName     string
	AltLastName      string
	AltEmail         string
	AltNumber        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
