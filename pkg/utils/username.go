package utils

import (
	"net/mail"
	"regexp"
	"strings"
)

const (
	MinUsernameLength = 2
	MaxUsernameLength = 30
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.]*$`)

// ValidateUsername validates an already normalized username.
// Rules: 2-30 characters, lowercase letters, digits, underscores and dots,
// starting with a letter or digit.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return &ValidationError{Field: "username", Message: "Username must be at least 2 characters"}
	}
	if len(username) > MaxUsernameLength {
		return &ValidationError{Field: "username", Message: "Username must be at most 30 characters"}
	}
	if !usernameRegex.MatchString(username) {
		return &ValidationError{Field: "username", Message: "Username can only contain letters, numbers, dots and underscores"}
	}
	return nil
}

// NormalizeUsername converts username to lowercase for storage
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeEmail trims and lowercases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address without a display name.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "Invalid email address"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
