package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

type sqliteActivityRepo struct {
	db *sql.DB
}

const activityColumns = "id, action, actor_id, entity_type, entity_id, project_id, changes_json, metadata_json, created_at"

func scanActivity(row interface{ Scan(...any) error }) (*models.Activity, error) {
	a := &models.Activity{}
	var projectID, changesJSON, metadataJSON sql.NullString
	err := row.Scan(&a.ID, &a.Action, &a.ActorID, &a.EntityType, &a.EntityID,
		&projectID, &changesJSON, &metadataJSON, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.ProjectID = projectID.String
	if changesJSON.Valid && changesJSON.String != "" {
		a.Changes = &models.Changes{}
		if err := json.Unmarshal([]byte(changesJSON.String), a.Changes); err != nil {
			return nil, fmt.Errorf("decode activity changes: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode activity metadata: %w", err)
		}
	}
	return a, nil
}

func (r *sqliteActivityRepo) Create(ctx context.Context, a *models.Activity) error {
	var changesJSON, metadataJSON any
	if a.Changes != nil {
		b, err := json.Marshal(a.Changes)
		if err != nil {
			return fmt.Errorf("encode activity changes: %w", err)
		}
		changesJSON = string(b)
	}
	if len(a.Metadata) > 0 {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	query := `
		INSERT INTO activities (id, action, actor_id, entity_type, entity_id, project_id, changes_json, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Action, a.ActorID, a.EntityType, a.EntityID, nullString(a.ProjectID),
		changesJSON, metadataJSON, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *sqliteActivityRepo) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*models.Activity, int64, error) {
	return r.list(ctx, "project_id = ?", []any{projectID}, limit, offset)
}

func (r *sqliteActivityRepo) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.Activity, int64, error) {
	return r.list(ctx, "actor_id = ?", []any{actorID}, limit, offset)
}

func (r *sqliteActivityRepo) ListByEntity(ctx context.Context, entityType models.EntityType, entityID string, limit, offset int) ([]*models.Activity, int64, error) {
	return r.list(ctx, "entity_type = ? AND entity_id = ?", []any{entityType, entityID}, limit, offset)
}

func (r *sqliteActivityRepo) list(ctx context.Context, where string, args []any, limit, offset int) ([]*models.Activity, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activities WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}

	query := "SELECT " + activityColumns + " FROM activities WHERE " + where +
		" ORDER BY created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, total, rows.Err()
}
