package models

import (
	"time"
)

// Action tags one audit entry with the mutation it records, as an
// entity.verb pair.
type Action string

const (
	ActionProjectCreate           Action = "project.create"
	ActionProjectUpdate           Action = "project.update"
	ActionProjectDelete           Action = "project.delete"
	ActionProjectMemberAdd        Action = "project.member_add"
	ActionProjectMemberRemove     Action = "project.member_remove"
	ActionProjectMemberRoleChange Action = "project.member_role_change"

	ActionTaskCreate       Action = "task.create"
	ActionTaskUpdate       Action = "task.update"
	ActionTaskAssign       Action = "task.assign"
	ActionTaskUnassign     Action = "task.unassign"
	ActionTaskStatusChange Action = "task.status_change"
	ActionTaskPriority     Action = "task.priority_change"
	ActionTaskDelete       Action = "task.delete"

	ActionUserCreate     Action = "user.create"
	ActionUserUpdate     Action = "user.update"
	ActionUserRoleChange Action = "user.role_change"
	ActionUserDeactivate Action = "user.deactivate"

	ActionCommentCreate Action = "comment.create"
	ActionCommentUpdate Action = "comment.update"
	ActionCommentDelete Action = "comment.delete"

	ActionLabelCreate Action = "label.create"
	ActionLabelUpdate Action = "label.update"
	ActionLabelDelete Action = "label.delete"
)

// EntityType identifies what kind of record an activity entry refers to.
type EntityType string

const (
	EntityProject EntityType = "project"
	EntityTask    EntityType = "task"
	EntityUser    EntityType = "user"
	EntityComment EntityType = "comment"
	EntityLabel   EntityType = "label"
)

// Changes holds before/after snapshots of the fields a mutation touched.
type Changes struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
}

// Activity is one append-only audit ledger entry. Entries are never
// mutated or deleted by application logic.
type Activity struct {
	ID         string            `json:"id"`
	Action     Action            `json:"action"`
	ActorID    string            `json:"actor_id"`
	EntityType EntityType        `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	ProjectID  string            `json:"project_id,omitempty"`
	Changes    *Changes          `json:"changes,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewActivity creates an audit entry stamped with the current time.
func NewActivity(action Action, actorID string, entityType EntityType, entityID string) *Activity {
	return &Activity{
		Action:     action,
		ActorID:    actorID,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  time.Now(),
	}
}
