package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

type sqliteUserRepo struct {
	db *sql.DB
}

const userColumns = "id, email, password_hash, first_name, last_name, role, is_active, last_login_at, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Role, &user.IsActive, &lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return user, nil
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET email = ?, password_hash = ?, first_name = ?, last_name = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

func (r *sqliteUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := "SELECT " + userColumns + " FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CountByRole buckets active users by system role.
func (r *sqliteUserRepo) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT role, COUNT(*) FROM users WHERE is_active = 1 GROUP BY role")
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Role]int64)
	for rows.Next() {
		var role models.Role
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan role count: %w", err)
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

// ChangeRole updates a user's system role. The WHERE clause re-checks
// the active-admin count inside the same statement, so two concurrent
// demotions cannot both slip past the guard.
func (r *sqliteUserRepo) ChangeRole(ctx context.Context, id string, role models.Role) error {
	query := `
		UPDATE users SET role = ?, updated_at = ?
		WHERE id = ?
		  AND (role != 'admin' OR ? = 'admin'
		       OR (SELECT COUNT(*) FROM users WHERE role = 'admin' AND is_active = 1 AND id != ?) > 0)
	`
	result, err := r.db.ExecContext(ctx, query, role, time.Now(), id, role, id)
	if err != nil {
		return fmt.Errorf("change user role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

// Deactivate flips is_active off with the same last-admin guard as
// ChangeRole.
func (r *sqliteUserRepo) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE users SET is_active = 0, updated_at = ?
		WHERE id = ?
		  AND (role != 'admin'
		       OR (SELECT COUNT(*) FROM users WHERE role = 'admin' AND is_active = 1 AND id != ?) > 0)
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

func (r *sqliteUserRepo) Activate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_active = 1, updated_at = ? WHERE id = ?", time.Now(), id)
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// guardFailure disambiguates a zero-row guarded update: missing user vs
// last-admin protection.
func (r *sqliteUserRepo) guardFailure(ctx context.Context, id string) error {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user not found: %s", id)
	}
	return ErrLastAdmin
}

func (r *sqliteUserRepo) Search(ctx context.Context, query string, limit int) ([]*models.User, error) {
	pattern := "%" + query + "%"
	q := "SELECT " + userColumns + ` FROM users
		WHERE is_active = 1 AND (email LIKE ? OR first_name LIKE ? OR last_name LIKE ?)
		ORDER BY email LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *sqliteUserRepo) DailyRegistrations(ctx context.Context, days int, now time.Time) (map[string]int64, error) {
	cutoff := now.UTC().AddDate(0, 0, -days)
	rows, err := r.db.QueryContext(ctx,
		"SELECT created_at FROM users WHERE created_at >= ?", cutoff)
	if err != nil {
		return nil, fmt.Errorf("daily registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var createdAt time.Time
		if err := rows.Scan(&createdAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		counts[createdAt.UTC().Format("2006-01-02")]++
	}
	return counts, rows.Err()
}
