package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Users table
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT 'member',
				is_active INTEGER NOT NULL DEFAULT 1,
				last_login_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Projects table
			CREATE TABLE IF NOT EXISTS projects (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				key TEXT UNIQUE NOT NULL,
				description TEXT,
				owner_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				visibility TEXT NOT NULL DEFAULT 'private',
				task_count INTEGER NOT NULL DEFAULT 0,
				completed_task_count INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (owner_id) REFERENCES users(id)
			);

			-- Project membership (the owner is implicit and never stored here)
			CREATE TABLE IF NOT EXISTS project_members (
				project_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'member',
				joined_at DATETIME NOT NULL,
				PRIMARY KEY (project_id, user_id),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Per-project task number allocator
			CREATE TABLE IF NOT EXISTS project_counters (
				project_id TEXT PRIMARY KEY,
				next_task_number INTEGER NOT NULL,
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);

			-- Tasks table
			CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				task_number TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT,
				status TEXT NOT NULL DEFAULT 'backlog',
				priority TEXT NOT NULL DEFAULT 'medium',
				type TEXT,
				assignee_id TEXT,
				reporter_id TEXT NOT NULL,
				parent_task_id TEXT,
				due_date DATETIME,
				estimated_hours REAL NOT NULL DEFAULT 0,
				actual_hours REAL NOT NULL DEFAULT 0,
				sort_order INTEGER NOT NULL DEFAULT 0,
				completed_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (project_id, task_number),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
				FOREIGN KEY (parent_task_id) REFERENCES tasks(id) ON DELETE CASCADE
			);

			-- Labels table (project-scoped)
			CREATE TABLE IF NOT EXISTS labels (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				color TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (project_id, name),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);

			-- Task-Label junction table
			CREATE TABLE IF NOT EXISTS task_labels (
				task_id TEXT NOT NULL,
				label_id TEXT NOT NULL,
				PRIMARY KEY (task_id, label_id),
				FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
				FOREIGN KEY (label_id) REFERENCES labels(id) ON DELETE CASCADE
			);

			-- Comments table (soft-deleted rows keep their place in the thread)
			CREATE TABLE IF NOT EXISTS comments (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL,
				author_id TEXT NOT NULL,
				body TEXT NOT NULL,
				is_deleted INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
			);

			-- Notifications table
			CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				recipient_id TEXT NOT NULL,
				type TEXT NOT NULL,
				message TEXT NOT NULL,
				entity_type TEXT,
				entity_id TEXT,
				is_read INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (recipient_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Activity ledger (append-only; no FK to entities so entries
			-- survive the records they describe)
			CREATE TABLE IF NOT EXISTS activities (
				id TEXT PRIMARY KEY,
				action TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id TEXT NOT NULL,
				project_id TEXT,
				changes_json TEXT,
				metadata_json TEXT,
				created_at DATETIME NOT NULL
			);

			-- Refresh tokens table
			CREATE TABLE IF NOT EXISTS refresh_tokens (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				token_hash TEXT UNIQUE NOT NULL,
				expires_at DATETIME NOT NULL,
				created_at DATETIME NOT NULL,
				revoked INTEGER NOT NULL DEFAULT 0,
				revoked_at DATETIME,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);
			CREATE INDEX IF NOT EXISTS idx_members_user ON project_members(user_id);
			CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
			CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
			CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
			CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date);
			CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id);
			CREATE INDEX IF NOT EXISTS idx_labels_project ON labels(project_id);
			CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read);
			CREATE INDEX IF NOT EXISTS idx_activities_project ON activities(project_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_activities_actor ON activities(actor_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_activities_entity ON activities(entity_type, entity_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_tokens_hash ON refresh_tokens(token_hash);
			CREATE INDEX IF NOT EXISTS idx_tokens_user ON refresh_tokens(user_id);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
