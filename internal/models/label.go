package models

import (
	"time"
)

// Label is a project-scoped tag attachable to tasks.
type Label struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLabel creates a new Label with initialized timestamps.
func NewLabel(projectID, name, color string) *Label {
	now := time.Now()
	return &Label{
		ProjectID: projectID,
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
