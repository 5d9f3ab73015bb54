package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

type sqliteCommentRepo struct {
	db *sql.DB
}

const commentColumns = "id, task_id, author_id, body, is_deleted, created_at, updated_at"

func scanComment(row interface{ Scan(...any) error }) (*models.Comment, error) {
	c := &models.Comment{}
	err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *sqliteCommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, task_id, author_id, body, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		comment.ID, comment.TaskID, comment.AuthorID, comment.Content, comment.IsDeleted,
		comment.CreatedAt, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *sqliteCommentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := "SELECT " + commentColumns + " FROM comments WHERE id = ?"
	comment, err := scanComment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comment by id: %w", err)
	}
	return comment, nil
}

func (r *sqliteCommentRepo) Update(ctx context.Context, comment *models.Comment) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE comments SET body = ?, updated_at = ? WHERE id = ? AND is_deleted = 0",
		comment.Content, comment.UpdatedAt, comment.ID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("comment not found: %s", comment.ID)
	}
	return nil
}

// SoftDelete blanks the body and flags the row; the thread keeps its
// shape and replies stay attached.
func (r *sqliteCommentRepo) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE comments SET body = '', is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0",
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("comment not found: %s", id)
	}
	return nil
}

func (r *sqliteCommentRepo) ListByTask(ctx context.Context, taskID string, limit, offset int) ([]*models.Comment, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM comments WHERE task_id = ?", taskID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	query := "SELECT " + commentColumns +
		" FROM comments WHERE task_id = ? ORDER BY created_at LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, taskID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, total, rows.Err()
}

func (r *sqliteCommentRepo) Search(ctx context.Context, projectIDs []string, query string, limit int) ([]*models.Comment, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(projectIDs))
	args := make([]any, 0, len(projectIDs)+2)
	for i, id := range projectIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, "%"+query+"%", limit)

	q := "SELECT c." + strings.ReplaceAll(commentColumns, ", ", ", c.") + `
		FROM comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE t.project_id IN (` + strings.Join(placeholders, ",") + `)
		  AND c.is_deleted = 0 AND c.body LIKE ?
		ORDER BY c.created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
