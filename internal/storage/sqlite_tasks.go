package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

type sqliteTaskRepo struct {
	db *sql.DB
}

const taskColumns = `id, project_id, task_number, title, description, status, priority, type,
	assignee_id, reporter_id, parent_task_id, due_date, estimated_hours, actual_hours,
	sort_order, completed_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	t := &models.Task{}
	var description, taskType, assigneeID, parentID sql.NullString
	var dueDate, completedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.TaskNumber, &t.Title, &description, &t.Status, &t.Priority,
		&taskType, &assigneeID, &t.ReporterID, &parentID, &dueDate, &t.EstimatedHours,
		&t.ActualHours, &t.Order, &completedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.Type = taskType.String
	t.AssigneeID = assigneeID.String
	t.ParentTaskID = parentID.String
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// Create inserts the task, drawing its sequence number from the
// project's counter row in the same transaction. The counter upsert
// allocates atomically, so concurrent creates get distinct numbers and
// deletions never free a number for reuse.
func (r *sqliteTaskRepo) Create(ctx context.Context, task *models.Task, projectKey string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin task create: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO project_counters (project_id, next_task_number) VALUES (?, 2)
		ON CONFLICT(project_id) DO UPDATE SET next_task_number = next_task_number + 1
		RETURNING next_task_number - 1
	`, task.ProjectID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("allocate task number: %w", err)
	}
	task.TaskNumber = models.FormatTaskNumber(projectKey, seq)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, task_number, title, description, status, priority, type,
			assignee_id, reporter_id, parent_task_id, due_date, estimated_hours, actual_hours,
			sort_order, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID, task.ProjectID, task.TaskNumber, task.Title, nullString(task.Description),
		task.Status, task.Priority, nullString(task.Type), nullString(task.AssigneeID),
		task.ReporterID, nullString(task.ParentTaskID), nullTime(task.DueDate),
		task.EstimatedHours, task.ActualHours, task.Order, nullTime(task.CompletedAt),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE projects SET task_count = task_count + 1, updated_at = ? WHERE id = ?",
		time.Now(), task.ProjectID)
	if err != nil {
		return fmt.Errorf("increment task count: %w", err)
	}

	if err := replaceTaskLabels(ctx, tx, task.ID, task.Labels); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sqliteTaskRepo) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE id = ?"
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	if err := r.attachLabels(ctx, []*models.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *sqliteTaskRepo) GetByNumber(ctx context.Context, projectID, taskNumber string) (*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE project_id = ? AND task_number = ?"
	task, err := scanTask(r.db.QueryRowContext(ctx, query, projectID, taskNumber))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task by number: %w", err)
	}
	if err := r.attachLabels(ctx, []*models.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// Update persists every mutable task field. Task number, project,
// reporter, and creation time never change.
func (r *sqliteTaskRepo) Update(ctx context.Context, task *models.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin task update: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, type = ?,
			assignee_id = ?, parent_task_id = ?, due_date = ?, estimated_hours = ?,
			actual_hours = ?, sort_order = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`,
		task.Title, nullString(task.Description), task.Status, task.Priority,
		nullString(task.Type), nullString(task.AssigneeID), nullString(task.ParentTaskID),
		nullTime(task.DueDate), task.EstimatedHours, task.ActualHours, task.Order,
		nullTime(task.CompletedAt), task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task not found: %s", task.ID)
	}

	if err := replaceTaskLabels(ctx, tx, task.ID, task.Labels); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sqliteTaskRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin task delete: %w", err)
	}
	defer tx.Rollback()

	var projectID string
	err = tx.QueryRowContext(ctx, "SELECT project_id FROM tasks WHERE id = ?", id).Scan(&projectID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("task not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("get task project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	// The number counter never decrements; deleted numbers are not
	// reused. Both counts are recounted because the delete cascades to
	// subtasks.
	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET
			task_count = (SELECT COUNT(*) FROM tasks WHERE project_id = ?),
			completed_task_count = (SELECT COUNT(*) FROM tasks WHERE project_id = ? AND status = 'done'),
			updated_at = ?
		WHERE id = ?
	`, projectID, projectID, time.Now(), projectID)
	if err != nil {
		return fmt.Errorf("update task counts: %w", err)
	}

	return tx.Commit()
}

func replaceTaskLabels(ctx context.Context, tx *sql.Tx, taskID string, labelIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM task_labels WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("clear task labels: %w", err)
	}
	for _, labelID := range labelIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO task_labels (task_id, label_id) VALUES (?, ?)", taskID, labelID)
		if err != nil {
			return fmt.Errorf("attach label %s: %w", labelID, err)
		}
	}
	return nil
}

// attachLabels fills Labels for a batch of tasks with one query.
func (r *sqliteTaskRepo) attachLabels(ctx context.Context, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*models.Task, len(tasks))
	placeholders := make([]string, 0, len(tasks))
	args := make([]any, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		placeholders = append(placeholders, "?")
		args = append(args, t.ID)
	}

	query := "SELECT task_id, label_id FROM task_labels WHERE task_id IN (" +
		strings.Join(placeholders, ",") + ")"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load task labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, labelID string
		if err := rows.Scan(&taskID, &labelID); err != nil {
			return fmt.Errorf("scan task label: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Labels = append(t.Labels, labelID)
		}
	}
	return rows.Err()
}

// filterClause renders a TaskFilter as extra WHERE conditions.
func filterClause(filter TaskFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.AssigneeID != "" {
		clauses = append(clauses, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func (r *sqliteTaskRepo) ListByProject(ctx context.Context, projectID string, filter TaskFilter, limit, offset int) ([]*models.Task, int64, error) {
	extra, extraArgs := filterClause(filter)

	countArgs := append([]any{projectID}, extraArgs...)
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE project_id = ?"+extra, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE project_id = ?" + extra +
		" ORDER BY sort_order, created_at LIMIT ? OFFSET ?"
	args := append(countArgs, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachLabels(ctx, tasks); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *sqliteTaskRepo) ListByAssignee(ctx context.Context, userID string, filter TaskFilter, limit, offset int) ([]*models.Task, int64, error) {
	extra, extraArgs := filterClause(filter)

	countArgs := append([]any{userID}, extraArgs...)
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE assignee_id = ?"+extra, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE assignee_id = ?" + extra +
		" ORDER BY due_date IS NULL, due_date, created_at LIMIT ? OFFSET ?"
	args := append(countArgs, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachLabels(ctx, tasks); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListOpenByProject returns every non-terminal task, for workload
// aggregation.
func (r *sqliteTaskRepo) ListOpenByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	query := "SELECT " + taskColumns +
		" FROM tasks WHERE project_id = ? AND status NOT IN ('done', 'cancelled')"
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *sqliteTaskRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

func (r *sqliteTaskRepo) CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int64)
	for rows.Next() {
		var status models.TaskStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *sqliteTaskRepo) CountByStatusForAssignee(ctx context.Context, userID string) (map[models.TaskStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM tasks WHERE assignee_id = ? GROUP BY status", userID)
	if err != nil {
		return nil, fmt.Errorf("count assignee tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int64)
	for rows.Next() {
		var status models.TaskStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *sqliteTaskRepo) RecountCompleted(ctx context.Context, projectID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET
			completed_task_count = (SELECT COUNT(*) FROM tasks WHERE project_id = ? AND status = 'done')
		WHERE id = ?
	`, projectID, projectID)
	if err != nil {
		return fmt.Errorf("recount completed tasks: %w", err)
	}
	return nil
}

func (r *sqliteTaskRepo) CountOpenForAssignee(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE assignee_id = ? AND status NOT IN ('done', 'cancelled')",
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open tasks: %w", err)
	}
	return count, nil
}

func (r *sqliteTaskRepo) CountOverdueForAssignee(ctx context.Context, userID string, now time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE assignee_id = ? AND due_date IS NOT NULL AND due_date < ?
		  AND status NOT IN ('done', 'cancelled')
	`, userID, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count overdue tasks: %w", err)
	}
	return count, nil
}

func (r *sqliteTaskRepo) ListDueSoon(ctx context.Context, userID string, from, until time.Time, limit int) ([]*models.Task, error) {
	// Already-overdue tasks are counted separately, not listed here.
	query := "SELECT " + taskColumns + ` FROM tasks
		WHERE assignee_id = ? AND due_date IS NOT NULL
		  AND due_date >= ? AND due_date <= ?
		  AND status NOT IN ('done', 'cancelled')
		ORDER BY due_date LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, from, until, limit)
	if err != nil {
		return nil, fmt.Errorf("list due soon: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *sqliteTaskRepo) DailyCompletions(ctx context.Context, days int, now time.Time) (map[string]int64, error) {
	cutoff := now.UTC().AddDate(0, 0, -days)
	rows, err := r.db.QueryContext(ctx,
		"SELECT completed_at FROM tasks WHERE completed_at IS NOT NULL AND completed_at >= ?",
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("daily completions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var completedAt time.Time
		if err := rows.Scan(&completedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		counts[completedAt.UTC().Format("2006-01-02")]++
	}
	return counts, rows.Err()
}

func (r *sqliteTaskRepo) Search(ctx context.Context, projectIDs []string, query string, limit int) ([]*models.Task, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	pattern := "%" + query + "%"
	placeholders := make([]string, len(projectIDs))
	args := make([]any, 0, len(projectIDs)+4)
	for i, id := range projectIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, pattern, pattern, pattern, limit)

	q := "SELECT " + taskColumns + " FROM tasks WHERE project_id IN (" +
		strings.Join(placeholders, ",") + `)
		AND (title LIKE ? OR description LIKE ? OR task_number LIKE ?)
		ORDER BY updated_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}
