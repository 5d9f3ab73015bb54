package models

import (
	"time"
)

// NotificationType categorizes what triggered a notification.
type NotificationType string

const (
	NotificationTaskAssigned NotificationType = "task_assigned"
	NotificationMemberAdded  NotificationType = "member_added"
	NotificationCommentAdded NotificationType = "comment_added"
)

// Notification is an in-app message for one recipient.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	EntityType  EntityType       `json:"entity_type,omitempty"`
	EntityID    string           `json:"entity_id,omitempty"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewNotification creates an unread Notification stamped with the current time.
func NewNotification(recipientID string, typ NotificationType, message string) *Notification {
	return &Notification{
		RecipientID: recipientID,
		Type:        typ,
		Message:     message,
		CreatedAt:   time.Now(),
	}
}
