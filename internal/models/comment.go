package models

import (
	"time"
)

// Comment is a task-scoped note. Deletion is a soft flag so threads keep
// their shape.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewComment creates a new Comment with initialized timestamps.
func NewComment(taskID, authorID, content string) *Comment {
	now := time.Now()
	return &Comment{
		TaskID:    taskID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
