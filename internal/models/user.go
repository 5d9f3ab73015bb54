package models

import (
	"time"
)

// Role represents a user's system-wide permission level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Level returns the role's position in the viewer < member < admin
// hierarchy, used for minimum-role gates.
func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether the role meets the given minimum.
func (r Role) AtLeast(minimum Role) bool {
	return r.Level() >= minimum.Level()
}

// User represents a system user.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewUser creates a new active User with initialized timestamps.
func NewUser(email, firstName, lastName string, role Role) *User {
	now := time.Now()
	return &User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin returns true if the user has the admin system role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
