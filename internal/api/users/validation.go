// Package users provides user management API endpoints.
package users

import (
	"regexp"
	"strings"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidationError contains validation error details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if len(email) > 255 {
		return &ValidationError{Field: "email", Message: "email must be at most 255 characters"}
	}
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateName validates a first or last name.
func ValidateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	if len(name) > 100 {
		return &ValidationError{Field: field, Message: field + " must be at most 100 characters"}
	}
	return nil
}

// ValidateRole validates a role string.
func ValidateRole(role string) (models.Role, error) {
	role = strings.TrimSpace(strings.ToLower(role))
	switch role {
	case "admin":
		return models.RoleAdmin, nil
	case "member":
		return models.RoleMember, nil
	case "viewer":
		return models.RoleViewer, nil
	default:
		return "", &ValidationError{Field: "role", Message: "role must be one of: admin, member, viewer"}
	}
}
