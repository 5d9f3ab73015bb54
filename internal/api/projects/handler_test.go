package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/taskforge/internal/activity"
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

	recorder := activity.NewRecorder(store.Activities(), nil)
	return NewHandler(store, recorder), store
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

func doRequest(t *testing.T, handler http.HandlerFunc, method string, body any, actor *models.User, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/", reader)
	req.Header.Set("Content-Type", "application/json")

	ctx := middleware.WithUser(req.Context(), actor.ID, actor.Email, actor.Role)

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	rec := httptest.NewRecorder()
	handler(rec, req.WithContext(ctx))
	return rec
}

func createProject(t *testing.T, h *Handler, owner *models.User, name, key string) *models.Project {
	t.Helper()

	rec := doRequest(t, h.Create, http.MethodPost, CreateRequest{Name: name, Key: key}, owner, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project returned %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data models.Project `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return &envelope.Data
}

func TestCreateProject(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Website Redesign", "web")

	if project.Key != "WEB" {
		t.Errorf("key = %q, want uppercased WEB", project.Key)
	}
	if project.OwnerID != owner.ID {
		t.Errorf("owner = %s, want %s", project.OwnerID, owner.ID)
	}
	if project.Status != models.ProjectStatusActive {
		t.Errorf("status = %s, want active", project.Status)
	}
	if project.Visibility != models.VisibilityPrivate {
		t.Errorf("visibility = %s, want private", project.Visibility)
	}
}

func TestCreateProjectDuplicateKey(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)

	createProject(t, h, owner, "First", "WEB")

	rec := doRequest(t, h.Create, http.MethodPost, CreateRequest{Name: "Second", Key: "WEB"}, owner, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate key returned %d, want 409", rec.Code)
	}
}

func TestCreateProjectInvalidKey(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)

	for _, key := range []string{"X", "1AB", "TOOLONGKEY123", "lower case"} {
		rec := doRequest(t, h.Create, http.MethodPost, CreateRequest{Name: "P", Key: key}, owner, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("key %q returned %d, want 400", key, rec.Code)
		}
	}
}

func TestPrivateProjectInvisibleToOutsiders(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)
	outsider := newTestUser(t, store, "outsider@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Secret", "SEC")

	// Reads as not-found, never as forbidden.
	rec := doRequest(t, h.Get, http.MethodGet, nil, outsider, map[string]string{"id": project.ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("outsider get returned %d, want 404", rec.Code)
	}
}

func TestPublicProjectVisibleToAll(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)
	outsider := newTestUser(t, store, "outsider@example.com", models.RoleViewer)

	rec := doRequest(t, h.Create, http.MethodPost, CreateRequest{
		Name: "Open", Key: "OPEN", Visibility: "public",
	}, owner, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data models.Project `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &envelope)

	rec = doRequest(t, h.Get, http.MethodGet, nil, outsider, map[string]string{"id": envelope.Data.ID})
	if rec.Code != http.StatusOK {
		t.Errorf("outsider get of public project returned %d, want 200", rec.Code)
	}
}

func TestAddMember(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)
	alice := newTestUser(t, store, "alice@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Team", "TEAM")

	rec := doRequest(t, h.AddMember, http.MethodPost, MemberRequest{UserID: alice.ID, Role: "member"},
		owner, map[string]string{"id": project.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("add member returned %d: %s", rec.Code, rec.Body.String())
	}

	// Adding the same user again conflicts.
	rec = doRequest(t, h.AddMember, http.MethodPost, MemberRequest{UserID: alice.ID, Role: "viewer"},
		owner, map[string]string{"id": project.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate add member returned %d, want 409", rec.Code)
	}

	// The new member received a notification.
	notifs, _, err := store.Notifications().ListForUser(context.Background(), alice.ID, false, 10, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifs) != 1 || notifs[0].Type != models.NotificationMemberAdded {
		t.Errorf("notifications = %v, want one member_added", notifs)
	}
}

func TestAddMemberRequiresManageRights(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)
	viewer := newTestUser(t, store, "viewer@example.com", models.RoleMember)
	target := newTestUser(t, store, "target@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Team", "TEAM")
	if err := store.Projects().AddMember(context.Background(), project.ID, viewer.ID, models.ProjectRoleViewer); err != nil {
		t.Fatalf("add member: %v", err)
	}

	rec := doRequest(t, h.AddMember, http.MethodPost, MemberRequest{UserID: target.ID, Role: "member"},
		viewer, map[string]string{"id": project.ID})
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer add member returned %d, want 403", rec.Code)
	}
}

func TestRemoveOwnerRejected(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Team", "TEAM")

	rec := doRequest(t, h.RemoveMember, http.MethodDelete, nil,
		owner, map[string]string{"id": project.ID, "userID": owner.ID})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("removing owner returned %d, want 400", rec.Code)
	}
}

func TestRemoveMember(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)
	alice := newTestUser(t, store, "alice@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Team", "TEAM")
	if err := store.Projects().AddMember(context.Background(), project.ID, alice.ID, models.ProjectRoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}

	rec := doRequest(t, h.RemoveMember, http.MethodDelete, nil,
		owner, map[string]string{"id": project.ID, "userID": alice.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove member returned %d: %s", rec.Code, rec.Body.String())
	}

	members, err := store.Projects().GetMembers(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("get members: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("members after removal = %d, want 0", len(members))
	}
}

func TestDeleteProjectOwnerOnly(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)
	padmin := newTestUser(t, store, "padmin@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Doomed", "DOOM")
	if err := store.Projects().AddMember(context.Background(), project.ID, padmin.ID, models.ProjectRoleAdmin); err != nil {
		t.Fatalf("add member: %v", err)
	}

	// Project admins cannot delete, only the owner (or a system admin).
	rec := doRequest(t, h.Delete, http.MethodDelete, nil,
		padmin, map[string]string{"id": project.ID})
	if rec.Code != http.StatusForbidden {
		t.Errorf("project admin delete returned %d, want 403", rec.Code)
	}

	rec = doRequest(t, h.Delete, http.MethodDelete, nil,
		owner, map[string]string{"id": project.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete returned %d: %s", rec.Code, rec.Body.String())
	}

	gone, err := store.Projects().GetByID(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if gone != nil {
		t.Error("project still present after delete")
	}
}

func TestUpdateProjectArchives(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Aging", "AGE")

	status := "archived"
	rec := doRequest(t, h.Update, http.MethodPut, UpdateRequest{Status: &status},
		owner, map[string]string{"id": project.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", rec.Code, rec.Body.String())
	}

	updated, _ := store.Projects().GetByID(context.Background(), project.ID)
	if updated.Status != models.ProjectStatusArchived {
		t.Errorf("status = %s, want archived", updated.Status)
	}
}

func TestLabelLifecycle(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Labeled", "LBL")

	rec := doRequest(t, h.CreateLabel, http.MethodPost, LabelRequest{Name: "bug", Color: "#ff0000"},
		owner, map[string]string{"id": project.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create label returned %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data models.Label `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode label: %v", err)
	}

	// Duplicate name within the project conflicts.
	rec = doRequest(t, h.CreateLabel, http.MethodPost, LabelRequest{Name: "bug"},
		owner, map[string]string{"id": project.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate label returned %d, want 409", rec.Code)
	}

	rec = doRequest(t, h.DeleteLabel, http.MethodDelete, nil,
		owner, map[string]string{"id": envelope.Data.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete label returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLabelEditRequiresNonViewer(t *testing.T) {
	h, store := setupHandler(t)
	owner := newTestUser(t, store, "owner@example.com", models.RoleMember)
	viewer := newTestUser(t, store, "viewer@example.com", models.RoleMember)

	project := createProject(t, h, owner, "Labeled", "LBL")
	if err := store.Projects().AddMember(context.Background(), project.ID, viewer.ID, models.ProjectRoleViewer); err != nil {
		t.Fatalf("add member: %v", err)
	}

	rec := doRequest(t, h.CreateLabel, http.MethodPost, LabelRequest{Name: "bug"},
		viewer, map[string]string{"id": project.ID})
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer create label returned %d, want 403", rec.Code)
	}
}
