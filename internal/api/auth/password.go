package auth

import (
	"strings"
	"unicode"
)

// bcrypt truncates beyond 72 bytes; reject rather than silently truncate.
const maxPasswordBytes = 72

// PasswordValidationError contains details about password validation failure.
type PasswordValidationError struct {
	Messages []string
}

func (e *PasswordValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// ValidatePassword checks if a password meets complexity requirements:
// 8-72 bytes, at least one letter and one digit.
func ValidatePassword(password string) error {
	var messages []string

	if len(password) < 8 {
		messages = append(messages, "password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		messages = append(messages, "password must be at most 72 bytes")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter {
		messages = append(messages, "password must contain at least 1 letter")
	}
	if !hasDigit {
		messages = append(messages, "password must contain at least 1 digit")
	}

	if len(messages) > 0 {
		return &PasswordValidationError{Messages: messages}
	}

	return nil
}
