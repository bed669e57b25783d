package auth

import (
	"errors"
	"strings"

	"github.com/atinyakov/ResQWave/internal/models"
)

// invalidCredentialMarkers are lower-case fragments of the backend's
// credential-rejection wording. The backend has no error code field yet, so
// this list is the only place that knows the wording.
var invalidCredentialMarkers = []string{
	"invalid email/phone number or password",
	"invalid credentials",
	"invalid email or password",
	"invalid phone number or password",
}

// IsInvalidCredentials reports whether a server message is a credential rejection.
func IsInvalidCredentials(message string) bool {
	m := strings.ToLower(message)
	for _, marker := range invalidCredentialMarkers {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}

// classifyLoginError turns a gateway failure whose message is a credential
// rejection into an InvalidCredentials error.
func classifyLoginError(err error) error {
	var e *models.Error
	if !errors.As(err, &e) {
		return err
	}
	if !errors.Is(e, models.ErrAPI) && !errors.Is(e, models.ErrAuthExpired) {
		return err
	}
	if IsInvalidCredentials(e.Message) {
		return models.NewInvalidCredentials(e.Status, e.Message)
	}
	return err
}
