package models

import (
	"fmt"
	"time"
)

// TaskStatus represents a task's workflow state. Any status may move to
// any other status; only the done transitions carry side effects.
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "backlog"
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal returns true for statuses excluded from open-work reporting.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}

// ParseTaskStatus converts a string to TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch s {
	case "backlog", "todo", "in_progress", "in_review", "done", "cancelled":
		return TaskStatus(s), nil
	default:
		return "", fmt.Errorf("status must be backlog, todo, in_progress, in_review, done, or cancelled")
	}
}

// TaskPriority represents a task's urgency.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// TaskPriorities lists all priorities in ascending order of urgency.
var TaskPriorities = []TaskPriority{
	TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent,
}

// ParseTaskPriority converts a string to TaskPriority.
func ParseTaskPriority(s string) (TaskPriority, error) {
	switch s {
	case "low", "medium", "high", "urgent":
		return TaskPriority(s), nil
	default:
		return "", fmt.Errorf("priority must be low, medium, high, or urgent")
	}
}

// Task represents one work item inside a project.
type Task struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	TaskNumber  string `json:"task_number"` // "{KEY}-{seq}", assigned once at creation
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Status   TaskStatus   `json:"status"`
	Priority TaskPriority `json:"priority"`
	Type     string       `json:"type,omitempty"`

	AssigneeID   string `json:"assignee_id,omitempty"`
	ReporterID   string `json:"reporter_id"` // immutable after creation
	ParentTaskID string `json:"parent_task_id,omitempty"`

	Labels []string `json:"labels,omitempty"` // label IDs

	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"`
	ActualHours    float64    `json:"actual_hours,omitempty"`
	Order          int64      `json:"order"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a new backlog Task with initialized timestamps.
// The task number is assigned by storage at creation time.
func NewTask(projectID, title, reporterID string) *Task {
	now := time.Now()
	return &Task{
		ProjectID:  projectID,
		Title:      title,
		ReporterID: reporterID,
		Status:     TaskStatusBacklog,
		Priority:   TaskPriorityMedium,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ApplyStatus moves the task to the given status and maintains
// completed_at: entering done stamps it (once), leaving done clears it,
// done to done leaves it untouched.
func (t *Task) ApplyStatus(status TaskStatus, now time.Time) {
	previous := t.Status
	t.Status = status

	switch {
	case status == TaskStatusDone && previous != TaskStatusDone:
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
	case status != TaskStatusDone && previous == TaskStatusDone:
		t.CompletedAt = nil
	}
}

// IsOverdue returns true if the task has an elapsed due date and is still open.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Status.IsTerminal()
}

// FormatTaskNumber builds the human-facing task identifier.
func FormatTaskNumber(projectKey string, seq int64) string {
	return fmt.Sprintf("%s-%d", projectKey, seq)
}
