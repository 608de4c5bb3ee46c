// Package validation checks account fields supplied by clients.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
	MaxUsernameLength = 50
	MaxNameLength     = 100
)

// ValidateUsername checks an already lower-cased username against the column bound.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("Username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("Username must be at most %d characters", MaxUsernameLength)
	}
	return nil
}

// ValidatePassword enforces the length bounds. field names the password in the message.
func ValidatePassword(password, field string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%s must be at least %d characters", field, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%s must be at most %d characters", field, MaxPasswordLength)
	}
	return nil
}

// ValidateDisplayName checks a trimmed display name.
func ValidateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("Name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("Name must be at most %d characters", MaxNameLength)
	}
	return nil
}
