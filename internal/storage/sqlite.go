package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	path string
	db   *sql.DB

	users         *sqliteUserRepo
	projects      *sqliteProjectRepo
	tasks         *sqliteTaskRepo
	comments      *sqliteCommentRepo
	labels        *sqliteLabelRepo
	notifications *sqliteNotificationRepo
	activities    *sqliteActivityRepo
	tokens        *sqliteTokenRepo
}

// NewSQLiteStorage creates a new SQLite storage.
func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

// Open initializes the database connection.
func (s *SQLiteStorage) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	// Enable foreign keys and WAL mode
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db

	// Initialize repositories
	s.users = &sqliteUserRepo{db: db}
	s.projects = &sqliteProjectRepo{db: db}
	s.tasks = &sqliteTaskRepo{db: db}
	s.comments = &sqliteCommentRepo{db: db}
	s.labels = &sqliteLabelRepo{db: db}
	s.notifications = &sqliteNotificationRepo{db: db}
	s.activities = &sqliteActivityRepo{db: db}
	s.tokens = &sqliteTokenRepo{db: db}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *SQLiteStorage) Migrate() error {
	return runMigrations(s.db)
}

// EnsureAdminUser creates default admin if no users exist.
func (s *SQLiteStorage) EnsureAdminUser() error {
	count, err := s.Users().Count(context.Background())
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil // Users exist, skip
	}

	// Generate random password
	password := generateRandomPassword(16)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	admin := &models.User{
		ID:           uuid.New().String(),
		Email:        "admin@localhost",
		PasswordHash: string(hash),
		FirstName:    "Admin",
		Role:         models.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Users().Create(context.Background(), admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	fmt.Printf("\n")
	fmt.Printf("===========================================\n")
	fmt.Printf("  DEFAULT ADMIN USER CREATED\n")
	fmt.Printf("  Email:    admin@localhost\n")
	fmt.Printf("  Password: %s\n", password)
	fmt.Printf("  CHANGE THIS PASSWORD IMMEDIATELY!\n")
	fmt.Printf("===========================================\n")
	fmt.Printf("\n")

	return nil
}

// Users returns the user repository.
func (s *SQLiteStorage) Users() UserRepository {
	return s.users
}

// Projects returns the project repository.
func (s *SQLiteStorage) Projects() ProjectRepository {
	return s.projects
}

// Tasks returns the task repository.
func (s *SQLiteStorage) Tasks() TaskRepository {
	return s.tasks
}

// Comments returns the comment repository.
func (s *SQLiteStorage) Comments() CommentRepository {
	return s.comments
}

// Labels returns the label repository.
func (s *SQLiteStorage) Labels() LabelRepository {
	return s.labels
}

// Notifications returns the notification repository.
func (s *SQLiteStorage) Notifications() NotificationRepository {
	return s.notifications
}

// Activities returns the activity repository.
func (s *SQLiteStorage) Activities() ActivityRepository {
	return s.activities
}

// Tokens returns the token repository.
func (s *SQLiteStorage) Tokens() TokenRepository {
	return s.tokens
}

// generateRandomPassword generates a random password of the specified length.
func generateRandomPassword(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)[:length]
}
