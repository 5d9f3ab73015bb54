package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/models"
	"github.com/good-yellow-bee/taskforge/internal/storage"
)

func setupHandler(t *testing.T) (*Handler, *storage.SQLiteStorage) {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate database: %v", err)
	}

	return NewHandler(store), store
}

func newTestUser(t *testing.T, store *storage.SQLiteStorage, email string, role models.Role) *models.User {
	t.Helper()

	user := models.NewUser(email, "Test", "User", role)
	user.ID = uuid.New().String()
	user.PasswordHash = "hash"

	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func newTestProject(t *testing.T, store *storage.SQLiteStorage, key, ownerID string) *models.Project {
	t.Helper()

	project := models.NewProject("Project "+key, key, "", ownerID)
	project.ID = uuid.New().String()

	if err := store.Projects().Create(context.Background(), project); err != nil {
		t.Fatalf("create project %s: %v", key, err)
	}
	return project
}

func newTestTask(t *testing.T, store *storage.SQLiteStorage, project *models.Project, title, assigneeID string, status models.TaskStatus, due *time.Time) *models.Task {
	t.Helper()

	task := models.NewTask(project.ID, title, project.OwnerID)
	task.ID = uuid.New().String()
	task.AssigneeID = assigneeID
	task.DueDate = due
	task.ApplyStatus(status, time.Now())

	if err := store.Tasks().Create(context.Background(), task, project.Key); err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func getAs(t *testing.T, handler http.HandlerFunc, actor *models.User, out any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := middleware.WithUser(req.Context(), actor.ID, actor.Email, actor.Role)

	rec := httptest.NewRecorder()
	handler(rec, req.WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Fatalf("request returned %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestGetOverview(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)
	project := newTestProject(t, store, "WEB", owner.ID)

	yesterday := time.Now().Add(-24 * time.Hour)
	soon := time.Now().Add(48 * time.Hour)

	newTestTask(t, store, project, "Open", owner.ID, models.TaskStatusTodo, nil)
	newTestTask(t, store, project, "Overdue", owner.ID, models.TaskStatusInProgress, &yesterday)
	newTestTask(t, store, project, "Due soon", owner.ID, models.TaskStatusTodo, &soon)
	newTestTask(t, store, project, "Done", owner.ID, models.TaskStatusDone, nil)
	newTestTask(t, store, project, "Unassigned", "", models.TaskStatusTodo, nil)

	var overview Overview
	getAs(t, h.GetOverview, owner, &overview)

	if overview.OpenTasks != 3 {
		t.Errorf("open tasks = %d, want 3", overview.OpenTasks)
	}
	if overview.OverdueTasks != 1 {
		t.Errorf("overdue tasks = %d, want 1", overview.OverdueTasks)
	}
	if overview.OwnedProjects != 1 {
		t.Errorf("owned projects = %d, want 1", overview.OwnedProjects)
	}
	if overview.MemberProjects != 0 {
		t.Errorf("member projects = %d, want 0", overview.MemberProjects)
	}
	if len(overview.DueSoon) != 1 || overview.DueSoon[0].Title != "Due soon" {
		t.Errorf("due soon = %v, want the one upcoming task", overview.DueSoon)
	}
	if overview.TasksByStatus[models.TaskStatusTodo] != 2 {
		t.Errorf("todo count = %d, want 2", overview.TasksByStatus[models.TaskStatusTodo])
	}
}

func TestGetStats(t *testing.T) {
	h, store := setupHandler(t)
	admin := newTestUser(t, store, "admin@example.com", models.RoleAdmin)
	member := newTestUser(t, store, "member@example.com", models.RoleMember)
	project := newTestProject(t, store, "WEB", member.ID)

	newTestTask(t, store, project, "One", member.ID, models.TaskStatusTodo, nil)
	newTestTask(t, store, project, "Two", member.ID, models.TaskStatusDone, nil)

	var stats Stats
	getAs(t, h.GetStats, admin, &stats)

	if stats.TotalUsers != 2 {
		t.Errorf("total users = %d, want 2", stats.TotalUsers)
	}
	if stats.ActiveUsersByRole[models.RoleAdmin] != 1 || stats.ActiveUsersByRole[models.RoleMember] != 1 {
		t.Errorf("users by role = %v", stats.ActiveUsersByRole)
	}
	if stats.TotalProjects != 1 {
		t.Errorf("total projects = %d, want 1", stats.TotalProjects)
	}
	if stats.TotalTasks != 2 {
		t.Errorf("total tasks = %d, want 2", stats.TotalTasks)
	}
	if stats.TasksByStatus[models.TaskStatusDone] != 1 {
		t.Errorf("done tasks = %d, want 1", stats.TasksByStatus[models.TaskStatusDone])
	}
	// Trailing-window series are zero-filled, one point per day.
	if len(stats.DailyRegistrations) != statsWindow {
		t.Errorf("daily registrations = %d points, want %d", len(stats.DailyRegistrations), statsWindow)
	}
	if len(stats.DailyCompletions) != statsWindow {
		t.Errorf("daily completions = %d points, want %d", len(stats.DailyCompletions), statsWindow)
	}

	var todayRegs int64
	for _, p := range stats.DailyRegistrations {
		todayRegs += p.Count
	}
	if todayRegs != 2 {
		t.Errorf("registrations in window = %d, want 2", todayRegs)
	}
}
