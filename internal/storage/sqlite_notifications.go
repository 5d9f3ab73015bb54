package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

type sqliteNotificationRepo struct {
	db *sql.DB
}

const notificationColumns = "id, recipient_id, type, message, entity_type, entity_id, is_read, created_at"

func scanNotification(row interface{ Scan(...any) error }) (*models.Notification, error) {
	n := &models.Notification{}
	var entityType, entityID sql.NullString
	err := row.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Message, &entityType, &entityID,
		&n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.EntityType = models.EntityType(entityType.String)
	n.EntityID = entityID.String
	return n, nil
}

func (r *sqliteNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, type, message, entity_type, entity_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, n.Type, n.Message, nullString(string(n.EntityType)),
		nullString(n.EntityID), n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *sqliteNotificationRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*models.Notification, int64, error) {
	where := "recipient_id = ?"
	if unreadOnly {
		where += " AND is_read = 0"
	}

	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE "+where, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query := "SELECT " + notificationColumns + " FROM notifications WHERE " + where +
		" ORDER BY created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

func (r *sqliteNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0",
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *sqliteNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification not found: %s", id)
	}
	return nil
}

func (r *sqliteNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0", userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
