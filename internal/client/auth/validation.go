package auth

import (
	"regexp"
	"strings"

	"github.com/atinyakov/ResQWave/internal/models"
)

// IdentifierKind tells which shape an identifier matched.
type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierPhone IdentifierKind = "phone"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// Philippine mobile numbers: 09XXXXXXXXX or +639XXXXXXXXX.
	phonePattern = regexp.MustCompile(`^(09|\+639)\d{9}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

// NormalizeIdentifier trims the identifier and removes interior whitespace.
// Dashes are removed too unless the identifier is an email address, so pasted
// phone numbers like "0912-345-6789" still match.
func NormalizeIdentifier(identifier string) string {
	s := strings.Join(strings.Fields(identifier), "")
	if strings.Contains(s, "@") {
		return s
	}
	return strings.ReplaceAll(s, "-", "")
}

// ValidateIdentifier checks an already normalized identifier.
func ValidateIdentifier(identifier string) (IdentifierKind, error) {
	switch {
	case identifier == "":
		return "", models.NewValidationError("Email or phone number is required")
	case emailPattern.MatchString(identifier):
		return IdentifierEmail, nil
	case phonePattern.MatchString(identifier):
		return IdentifierPhone, nil
	}
	return "", models.NewValidationError("Enter a valid email or phone number")
}

// ValidateCode checks that code is exactly six digits.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return models.NewValidationError("Verification code must be exactly 6 digits")
	}
	return nil
}
