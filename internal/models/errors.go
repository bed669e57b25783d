package models

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAPI                = errors.New("api error")
	ErrAuthExpired        = errors.New("auth expired")
	ErrNetwork            = errors.New("network failure")
)

// DefaultSessionExpiredMessage is reported for 401/403 responses without a server message.
const DefaultSessionExpiredMessage = "Session expired. Please login again."

// Error is a classified failure carrying the most specific message available.
type Error struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Status is the HTTP status, zero when no response was received.
	Status int
	// Message is the user-facing text.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports malformed local input. No request was sent.
func NewValidationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NewAccountLocked reports a server-signalled lockout.
func NewAccountLocked(msg string) *Error {
	if msg == "" {
		msg = "Account is locked"
	}
	return &Error{Kind: ErrAccountLocked, Message: msg}
}

// NewInvalidCredentials reports a rejected identifier/password pair.
func NewInvalidCredentials(status int, msg string) *Error {
	return &Error{Kind: ErrInvalidCredentials, Status: status, Message: msg}
}

// NewAPIError reports a non-2xx response or an unusable 2xx body.
func NewAPIError(status int, msg string, cause error) *Error {
	return &Error{Kind: ErrAPI, Status: status, Message: msg, Err: cause}
}

// NewAuthExpired reports a 401/403 response.
func NewAuthExpired(status int, msg string) *Error {
	if msg == "" {
		msg = DefaultSessionExpiredMessage
	}
	return &Error{Kind: ErrAuthExpired, Status: status, Message: msg}
}

// NewNetworkFailure reports a request that never produced a response.
func NewNetworkFailure(cause error) *Error {
	return &Error{Kind: ErrNetwork, Message: "network failure: " + cause.Error(), Err: cause}
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
