package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

const projectColumns = "id, name, key, description, owner_id, status, visibility, task_count, completed_task_count, created_at, updated_at"

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	var description sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &p.Key, &description, &p.OwnerID, &p.Status, &p.Visibility,
		&p.TaskCount, &p.CompletedTaskCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	return p, nil
}

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, name, key, description, owner_id, status, visibility, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.Name, project.Key, project.Description, project.OwnerID,
		project.Status, project.Visibility, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := "SELECT " + projectColumns + " FROM projects WHERE id = ?"
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	if err := r.loadMembers(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (r *sqliteProjectRepo) GetByKey(ctx context.Context, key string) (*models.Project, error) {
	query := "SELECT " + projectColumns + " FROM projects WHERE key = ?"
	project, err := scanProject(r.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by key: %w", err)
	}
	if err := r.loadMembers(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// loadMembers fills the project's member role map. The owner is
// implicit and never stored in the table.
func (r *sqliteProjectRepo) loadMembers(ctx context.Context, project *models.Project) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id, role FROM project_members WHERE project_id = ?", project.ID)
	if err != nil {
		return fmt.Errorf("load project members: %w", err)
	}
	defer rows.Close()

	project.Members = make(map[string]models.ProjectRole)
	for rows.Next() {
		var userID string
		var role models.ProjectRole
		if err := rows.Scan(&userID, &role); err != nil {
			return fmt.Errorf("scan project member: %w", err)
		}
		project.Members[userID] = role
	}
	return rows.Err()
}

func (r *sqliteProjectRepo) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects SET name = ?, description = ?, status = ?, visibility = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		project.Name, project.Description, project.Status, project.Visibility,
		project.UpdatedAt, project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project not found: %s", project.ID)
	}
	return nil
}

// Delete removes the project. Members, counters, tasks, comments, and
// labels go with it via foreign key cascades.
func (r *sqliteProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

func (r *sqliteProjectRepo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Project, int64, error) {
	membership := `
		owner_id = ? OR id IN (SELECT project_id FROM project_members WHERE user_id = ?)
	`
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM projects WHERE "+membership, userID, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	query := "SELECT " + projectColumns + " FROM projects WHERE " + membership +
		" ORDER BY updated_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, userID, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects, err := collectProjects(rows)
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *sqliteProjectRepo) ListAll(ctx context.Context, limit, offset int) ([]*models.Project, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	query := "SELECT " + projectColumns + " FROM projects ORDER BY updated_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects, err := collectProjects(rows)
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func collectProjects(rows *sql.Rows) ([]*models.Project, error) {
	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&count); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}

func (r *sqliteProjectRepo) CountByStatus(ctx context.Context) (map[models.ProjectStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM projects GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count projects by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ProjectStatus]int64)
	for rows.Next() {
		var status models.ProjectStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountForUser returns how many projects the user owns and how many
// they joined as a member.
func (r *sqliteProjectRepo) CountForUser(ctx context.Context, userID string) (int64, int64, error) {
	var owned, member int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM projects WHERE owner_id = ?", userID).Scan(&owned); err != nil {
		return 0, 0, fmt.Errorf("count owned projects: %w", err)
	}
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_members WHERE user_id = ?", userID).Scan(&member); err != nil {
		return 0, 0, fmt.Errorf("count member projects: %w", err)
	}
	return owned, member, nil
}

func (r *sqliteProjectRepo) AddMember(ctx context.Context, projectID, userID string, role models.ProjectRole) error {
	query := `
		INSERT INTO project_members (project_id, user_id, role, joined_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`
	if _, err := r.db.ExecContext(ctx, query, projectID, userID, role); err != nil {
		return fmt.Errorf("add project member: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) RemoveMember(ctx context.Context, projectID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM project_members WHERE project_id = ? AND user_id = ?", projectID, userID)
	if err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("member not found: %s", userID)
	}
	return nil
}

func (r *sqliteProjectRepo) UpdateMemberRole(ctx context.Context, projectID, userID string, role models.ProjectRole) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE project_members SET role = ? WHERE project_id = ? AND user_id = ?",
		role, projectID, userID)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("member not found: %s", userID)
	}
	return nil
}

func (r *sqliteProjectRepo) GetMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	query := `
		SELECT m.user_id, u.email, u.first_name, u.last_name, m.role, m.joined_at
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ?
		ORDER BY m.joined_at
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project members: %w", err)
	}
	defer rows.Close()

	var members []*models.ProjectMember
	for rows.Next() {
		m := &models.ProjectMember{}
		if err := rows.Scan(&m.UserID, &m.Email, &m.FirstName, &m.LastName, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *sqliteProjectRepo) VisibleProjectIDs(ctx context.Context, userID string, isAdmin bool) ([]string, error) {
	query := `
		SELECT id FROM projects
		WHERE visibility = 'public'
		   OR owner_id = ?
		   OR id IN (SELECT project_id FROM project_members WHERE user_id = ?)
	`
	args := []any{userID, userID}
	if isAdmin {
		query = "SELECT id FROM projects"
		args = nil
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("visible project ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteProjectRepo) Search(ctx context.Context, userID string, isAdmin bool, query string, limit int) ([]*models.Project, error) {
	pattern := "%" + query + "%"
	match := "(name LIKE ? OR key LIKE ? OR description LIKE ?)"

	var rows *sql.Rows
	var err error
	if isAdmin {
		q := "SELECT " + projectColumns + " FROM projects WHERE " + match +
			" ORDER BY updated_at DESC LIMIT ?"
		rows, err = r.db.QueryContext(ctx, q, pattern, pattern, pattern, limit)
	} else {
		q := "SELECT " + projectColumns + ` FROM projects WHERE ` + match + `
			AND (visibility = 'public'
			     OR owner_id = ?
			     OR id IN (SELECT project_id FROM project_members WHERE user_id = ?))
			ORDER BY updated_at DESC LIMIT ?`
		rows, err = r.db.QueryContext(ctx, q, pattern, pattern, pattern, userID, userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}
	defer rows.Close()

	return collectProjects(rows)
}
