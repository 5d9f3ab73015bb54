// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

// ErrLastAdmin is returned by guarded user updates that would leave the
// system without an active admin.
var ErrLastAdmin = errors.New("cannot demote or deactivate the last active admin")

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates default admin if no users exist using secure bootstrap credentials.
	EnsureAdminUser() error

	// Repository accessors
	Users() UserRepository
	Projects() ProjectRepository
	Tasks() TaskRepository
	Comments() CommentRepository
	Labels() LabelRepository
	Notifications() NotificationRepository
	Activities() ActivityRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]*models.User, int64, error)
	Count(ctx context.Context) (int64, error)

	// CountByRole buckets active users by system role.
	CountByRole(ctx context.Context) (map[models.Role]int64, error)

	// ChangeRole updates a user's system role. Demoting the last active
	// admin fails with ErrLastAdmin; the guard is enforced in the same
	// statement so concurrent demotions cannot race past it.
	ChangeRole(ctx context.Context, id string, role models.Role) error

	// Deactivate flips is_active off, with the same last-admin guard.
	Deactivate(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error

	Search(ctx context.Context, query string, limit int) ([]*models.User, error)
	DailyRegistrations(ctx context.Context, days int, now time.Time) (map[string]int64, error)
}

// ProjectRepository defines operations for project management.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetByKey(ctx context.Context, key string) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error

	// ListForUser returns projects the user owns or belongs to.
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Project, int64, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Project, int64, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[models.ProjectStatus]int64, error)

	// CountForUser returns how many projects the user owns and how many
	// they belong to as a member.
	CountForUser(ctx context.Context, userID string) (owned, member int64, err error)

	AddMember(ctx context.Context, projectID, userID string, role models.ProjectRole) error
	RemoveMember(ctx context.Context, projectID, userID string) error
	UpdateMemberRole(ctx context.Context, projectID, userID string, role models.ProjectRole) error
	GetMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error)

	// VisibleProjectIDs returns the IDs of projects the user may read:
	// owned, joined, or public. Admins see every project.
	VisibleProjectIDs(ctx context.Context, userID string, isAdmin bool) ([]string, error)

	Search(ctx context.Context, userID string, isAdmin bool, query string, limit int) ([]*models.Project, error)
}

// TaskFilter narrows task listings. Zero-valued fields are ignored.
type TaskFilter struct {
	Status     models.TaskStatus
	Priority   models.TaskPriority
	AssigneeID string
	Type       string
}

// TaskRepository defines operations for task management.
type TaskRepository interface {
	// Create inserts the task and assigns its sequential task number
	// from the project's counter in the same transaction.
	Create(ctx context.Context, task *models.Task, projectKey string) error

	GetByID(ctx context.Context, id string) (*models.Task, error)
	GetByNumber(ctx context.Context, projectID, taskNumber string) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error

	ListByProject(ctx context.Context, projectID string, filter TaskFilter, limit, offset int) ([]*models.Task, int64, error)
	ListByAssignee(ctx context.Context, userID string, filter TaskFilter, limit, offset int) ([]*models.Task, int64, error)
	ListOpenByProject(ctx context.Context, projectID string) ([]*models.Task, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error)
	CountByStatusForAssignee(ctx context.Context, userID string) (map[models.TaskStatus]int64, error)

	// RecountCompleted recomputes the project's completed task count
	// from the task rows.
	RecountCompleted(ctx context.Context, projectID string) error

	CountOpenForAssignee(ctx context.Context, userID string) (int64, error)
	CountOverdueForAssignee(ctx context.Context, userID string, now time.Time) (int64, error)
	// ListDueSoon returns open tasks due inside [from, until]; overdue
	// tasks fall outside the window and are surfaced by the overdue
	// count instead.
	ListDueSoon(ctx context.Context, userID string, from, until time.Time, limit int) ([]*models.Task, error)
	DailyCompletions(ctx context.Context, days int, now time.Time) (map[string]int64, error)

	Search(ctx context.Context, projectIDs []string, query string, limit int) ([]*models.Task, error)
}

// CommentRepository defines operations for task comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error

	// SoftDelete blanks the body and marks the comment deleted; the row
	// stays so threads keep their shape.
	SoftDelete(ctx context.Context, id string) error

	ListByTask(ctx context.Context, taskID string, limit, offset int) ([]*models.Comment, int64, error)
	Search(ctx context.Context, projectIDs []string, query string, limit int) ([]*models.Comment, error)
}

// LabelRepository defines operations for project labels.
type LabelRepository interface {
	Create(ctx context.Context, label *models.Label) error
	GetByID(ctx context.Context, id string) (*models.Label, error)
	GetByName(ctx context.Context, projectID, name string) (*models.Label, error)
	Update(ctx context.Context, label *models.Label) error
	Delete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID string) ([]*models.Label, error)
}

// NotificationRepository defines operations for in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)

	// MarkRead marks one notification read; scoped to the recipient so
	// users cannot touch each other's notifications.
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// ActivityRepository defines operations for the audit ledger. Entries
// are append-only: there is no update or delete.
type ActivityRepository interface {
	Create(ctx context.Context, a *models.Activity) error
	ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*models.Activity, int64, error)
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.Activity, int64, error)
	ListByEntity(ctx context.Context, entityType models.EntityType, entityID string, limit, offset int) ([]*models.Activity, int64, error)
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
