package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

type sqliteLabelRepo struct {
	db *sql.DB
}

const labelColumns = "id, project_id, name, color, created_at, updated_at"

func scanLabel(row interface{ Scan(...any) error }) (*models.Label, error) {
	l := &models.Label{}
	var color sql.NullString
	err := row.Scan(&l.ID, &l.ProjectID, &l.Name, &color, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Color = color.String
	return l, nil
}

func (r *sqliteLabelRepo) Create(ctx context.Context, label *models.Label) error {
	query := `
		INSERT INTO labels (id, project_id, name, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		label.ID, label.ProjectID, label.Name, label.Color, label.CreatedAt, label.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

func (r *sqliteLabelRepo) GetByID(ctx context.Context, id string) (*models.Label, error) {
	query := "SELECT " + labelColumns + " FROM labels WHERE id = ?"
	label, err := scanLabel(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get label by id: %w", err)
	}
	return label, nil
}

func (r *sqliteLabelRepo) GetByName(ctx context.Context, projectID, name string) (*models.Label, error) {
	query := "SELECT " + labelColumns + " FROM labels WHERE project_id = ? AND name = ?"
	label, err := scanLabel(r.db.QueryRowContext(ctx, query, projectID, name))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get label by name: %w", err)
	}
	return label, nil
}

func (r *sqliteLabelRepo) Update(ctx context.Context, label *models.Label) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE labels SET name = ?, color = ?, updated_at = ? WHERE id = ?",
		label.Name, label.Color, label.UpdatedAt, label.ID)
	if err != nil {
		return fmt.Errorf("update label: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("label not found: %s", label.ID)
	}
	return nil
}

// Delete removes the label; task attachments go with it via cascade.
func (r *sqliteLabelRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM labels WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("label not found: %s", id)
	}
	return nil
}

func (r *sqliteLabelRepo) ListByProject(ctx context.Context, projectID string) ([]*models.Label, error) {
	query := "SELECT " + labelColumns + " FROM labels WHERE project_id = ? ORDER BY name"
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}
