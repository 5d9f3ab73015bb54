package models

import (
	"fmt"
	"time"
)

// ProjectRole represents a user's permission level within one project.
type ProjectRole string

const (
	ProjectRoleOwner  ProjectRole = "owner"
	ProjectRoleAdmin  ProjectRole = "admin"
	ProjectRoleMember ProjectRole = "member"
	ProjectRoleViewer ProjectRole = "viewer"
)

// ParseProjectRole converts a string to a membership ProjectRole.
// The owner role is implicit and never assignable, so it is rejected here.
func ParseProjectRole(s string) (ProjectRole, error) {
	switch s {
	case "admin":
		return ProjectRoleAdmin, nil
	case "member":
		return ProjectRoleMember, nil
	case "viewer":
		return ProjectRoleViewer, nil
	default:
		return "", fmt.Errorf("role must be admin, member, or viewer")
	}
}

// ProjectStatus represents a project's lifecycle state.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusArchived  ProjectStatus = "archived"
	ProjectStatusCompleted ProjectStatus = "completed"
)

// Visibility controls who can read a project.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Project represents a unit of team work: a key-prefixed task container
// with an owner and a role-assigned member set.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Key         string        `json:"key"`
	Description string        `json:"description,omitempty"`
	OwnerID     string        `json:"owner_id"`
	Status      ProjectStatus `json:"status"`
	Visibility  Visibility    `json:"visibility"`

	// Members maps user ID to project role. The owner is implicit and
	// never appears in this map.
	Members map[string]ProjectRole `json:"-"`

	TaskCount          int64 `json:"task_count"`
	CompletedTaskCount int64 `json:"completed_task_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a new active private Project with initialized timestamps.
func NewProject(name, key, description, ownerID string) *Project {
	now := time.Now()
	return &Project{
		Name:        name,
		Key:         key,
		Description: description,
		OwnerID:     ownerID,
		Status:      ProjectStatusActive,
		Visibility:  VisibilityPrivate,
		Members:     make(map[string]ProjectRole),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsPublic returns true if any authenticated user may read the project.
func (p *Project) IsPublic() bool {
	return p.Visibility == VisibilityPublic
}

// ProjectMember is the listing view of one membership row.
type ProjectMember struct {
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      ProjectRole `json:"role"`
	JoinedAt  time.Time   `json:"joined_at"`
}

// ValidateProjectKey checks the task-number prefix format: 2-10 uppercase
// letters or digits, first character a letter. This is a data-model
// invariant, enforced wherever a key is created.
func ValidateProjectKey(key string) error {
	if len(key) < 2 || len(key) > 10 {
		return fmt.Errorf("project key must be 2-10 characters")
	}
	if key[0] < 'A' || key[0] > 'Z' {
		return fmt.Errorf("project key must start with an uppercase letter")
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return fmt.Errorf("project key may contain only uppercase letters and digits")
		}
	}
	return nil
}

// ParseProjectStatus converts a string to ProjectStatus.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch s {
	case "active":
		return ProjectStatusActive, nil
	case "archived":
		return ProjectStatusArchived, nil
	case "completed":
		return ProjectStatusCompleted, nil
	default:
		return "", fmt.Errorf("status must be active, archived, or completed")
	}
}

// ParseVisibility converts a string to Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "private":
		return VisibilityPrivate, nil
	case "public":
		return VisibilityPublic, nil
	default:
		return "", fmt.Errorf("visibility must be private or public")
	}
}
