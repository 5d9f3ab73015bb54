package activity

import (
	"time"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

// taskRule pairs a change predicate with the action recorded when it
// matches. Rules are evaluated in order and the first match wins, so a
// single update that reassigns a task and moves its status is tagged as
// an assignment.
type taskRule struct {
	matches func(before, after *models.Task) bool
	action  models.Action
}

var taskRules = []taskRule{
	{
		matches: func(b, a *models.Task) bool {
			return b.AssigneeID != a.AssigneeID && a.AssigneeID != ""
		},
		action: models.ActionTaskAssign,
	},
	{
		matches: func(b, a *models.Task) bool {
			return b.AssigneeID != a.AssigneeID && a.AssigneeID == ""
		},
		action: models.ActionTaskUnassign,
	},
	{
		matches: func(b, a *models.Task) bool { return b.Status != a.Status },
		action:  models.ActionTaskStatusChange,
	},
	{
		matches: func(b, a *models.Task) bool { return b.Priority != a.Priority },
		action:  models.ActionTaskPriority,
	},
}

// InferTaskAction classifies a task update by comparing the task before
// and after the mutation. Updates matching no rule fall back to the
// generic task.update tag.
func InferTaskAction(before, after *models.Task) models.Action {
	for _, r := range taskRules {
		if r.matches(before, after) {
			return r.action
		}
	}
	return models.ActionTaskUpdate
}

// DiffTask builds before/after snapshots of the task fields an update
// changed. Returns nil when nothing changed.
func DiffTask(before, after *models.Task) *models.Changes {
	c := &models.Changes{
		Before: make(map[string]any),
		After:  make(map[string]any),
	}

	record := func(field string, b, a any) {
		c.Before[field] = b
		c.After[field] = a
	}

	if before.Title != after.Title {
		record("title", before.Title, after.Title)
	}
	if before.Description != after.Description {
		record("description", before.Description, after.Description)
	}
	if before.Status != after.Status {
		record("status", string(before.Status), string(after.Status))
	}
	if before.Priority != after.Priority {
		record("priority", string(before.Priority), string(after.Priority))
	}
	if before.Type != after.Type {
		record("type", before.Type, after.Type)
	}
	if before.AssigneeID != after.AssigneeID {
		record("assignee_id", before.AssigneeID, after.AssigneeID)
	}
	if before.ParentTaskID != after.ParentTaskID {
		record("parent_task_id", before.ParentTaskID, after.ParentTaskID)
	}
	if !timePtrEqual(before.DueDate, after.DueDate) {
		record("due_date", before.DueDate, after.DueDate)
	}
	if before.EstimatedHours != after.EstimatedHours {
		record("estimated_hours", before.EstimatedHours, after.EstimatedHours)
	}
	if before.ActualHours != after.ActualHours {
		record("actual_hours", before.ActualHours, after.ActualHours)
	}
	if before.Order != after.Order {
		record("order", before.Order, after.Order)
	}

	if len(c.Before) == 0 {
		return nil
	}
	return c
}

// DiffProject builds before/after snapshots of changed project fields.
// Returns nil when nothing changed.
func DiffProject(before, after *models.Project) *models.Changes {
	c := &models.Changes{
		Before: make(map[string]any),
		After:  make(map[string]any),
	}

	record := func(field string, b, a any) {
		c.Before[field] = b
		c.After[field] = a
	}

	if before.Name != after.Name {
		record("name", before.Name, after.Name)
	}
	if before.Description != after.Description {
		record("description", before.Description, after.Description)
	}
	if before.Status != after.Status {
		record("status", string(before.Status), string(after.Status))
	}
	if before.Visibility != after.Visibility {
		record("visibility", string(before.Visibility), string(after.Visibility))
	}

	if len(c.Before) == 0 {
		return nil
	}
	return c
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
