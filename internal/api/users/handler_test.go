package users

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
	"golang.org/x/crypto/bcrypt"

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

func newTestUser(t *testing.T, store *storage.SQLiteStorage, email string, role models.Role, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user := models.NewUser(email, "Test", "User", role)
	user.ID = uuid.New().String()
	user.PasswordHash = string(hash)

	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

// doRequest runs a handler with an authenticated actor and optional chi
// URL params.
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

func TestCreateUserWithRole(t *testing.T) {
	h, store := setupHandler(t)
	admin := newTestUser(t, store, "admin@example.com", models.RoleAdmin, "password1")

	rec := doRequest(t, h.Create, http.MethodPost, CreateRequest{
		Email:     "viewer@example.com",
		Password:  "password1",
		FirstName: "View",
		LastName:  "Only",
		Role:      "viewer",
	}, admin, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}

	created, err := store.Users().GetByEmail(context.Background(), "viewer@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if created == nil || created.Role != models.RoleViewer {
		t.Errorf("created user role = %v, want viewer", created)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	h, store := setupHandler(t)
	admin := newTestUser(t, store, "admin@example.com", models.RoleAdmin, "password1")

	rec := doRequest(t, h.Create, http.MethodPost, CreateRequest{
		Email:     "admin@example.com",
		Password:  "password1",
		FirstName: "Dup",
		LastName:  "User",
		Role:      "member",
	}, admin, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create returned %d, want 409", rec.Code)
	}
}

func TestChangeRolePromotesMember(t *testing.T) {
	h, store := setupHandler(t)
	admin := newTestUser(t, store, "admin@example.com", models.RoleAdmin, "password1")
	member := newTestUser(t, store, "member@example.com", models.RoleMember, "password1")

	rec := doRequest(t, h.ChangeRole, http.MethodPut, RoleRequest{Role: "admin"},
		admin, map[string]string{"id": member.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("change role returned %d: %s", rec.Code, rec.Body.String())
	}

	updated, err := store.Users().GetByID(context.Background(), member.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if updated.Role != models.RoleAdmin {
		t.Errorf("role = %s, want admin", updated.Role)
	}
}

func TestChangeRoleLastAdminConflict(t *testing.T) {
	h, store := setupHandler(t)
	admin := newTestUser(t, store, "admin@example.com", models.RoleAdmin, "password1")
	newTestUser(t, store, "member@example.com", models.RoleMember, "password1")

	rec := doRequest(t, h.ChangeRole, http.MethodPut, RoleRequest{Role: "member"},
		admin, map[string]string{"id": admin.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("demoting the only admin returned %d, want 409", rec.Code)
	}
}

func TestDeactivateSelfRejected(t *testing.T) {
	h, store := setupHandler(t)
	admin := newTestUser(t, store, "admin@example.com", models.RoleAdmin, "password1")

	rec := doRequest(t, h.Deactivate, http.MethodDelete, nil,
		admin, map[string]string{"id": admin.ID})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self-deactivate returned %d, want 400", rec.Code)
	}
}

func TestDeactivateLastAdminConflict(t *testing.T) {
	h, store := setupHandler(t)
	admin := newTestUser(t, store, "admin@example.com", models.RoleAdmin, "password1")
	other := newTestUser(t, store, "other@example.com", models.RoleAdmin, "password1")

	// Demote one admin first so only one remains.
	if err := store.Users().ChangeRole(context.Background(), other.ID, models.RoleMember); err != nil {
		t.Fatalf("change role: %v", err)
	}

	// A second admin acting on the last one; use the demoted account as
	// the target's peer to avoid the self-deactivate guard.
	rec := doRequest(t, h.Deactivate, http.MethodDelete, nil,
		other, map[string]string{"id": admin.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("deactivating the only admin returned %d, want 409", rec.Code)
	}
}

func TestDeactivateAndReactivate(t *testing.T) {
	h, store := setupHandler(t)
	admin := newTestUser(t, store, "admin@example.com", models.RoleAdmin, "password1")
	member := newTestUser(t, store, "member@example.com", models.RoleMember, "password1")

	rec := doRequest(t, h.Deactivate, http.MethodDelete, nil,
		admin, map[string]string{"id": member.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate returned %d: %s", rec.Code, rec.Body.String())
	}

	updated, _ := store.Users().GetByID(context.Background(), member.ID)
	if updated.IsActive {
		t.Fatal("user still active after deactivation")
	}

	rec = doRequest(t, h.Activate, http.MethodPut, nil,
		admin, map[string]string{"id": member.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("activate returned %d: %s", rec.Code, rec.Body.String())
	}

	updated, _ = store.Users().GetByID(context.Background(), member.ID)
	if !updated.IsActive {
		t.Error("user inactive after reactivation")
	}
}

func TestChangePassword(t *testing.T) {
	h, store := setupHandler(t)
	member := newTestUser(t, store, "member@example.com", models.RoleMember, "password1")

	rec := doRequest(t, h.ChangePassword, http.MethodPut, ChangePasswordRequest{
		CurrentPassword: "wrong-pass1",
		NewPassword:     "newpassword1",
	}, member, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong current password returned %d, want 400", rec.Code)
	}

	rec = doRequest(t, h.ChangePassword, http.MethodPut, ChangePasswordRequest{
		CurrentPassword: "password1",
		NewPassword:     "newpassword1",
	}, member, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("change password returned %d: %s", rec.Code, rec.Body.String())
	}

	updated, _ := store.Users().GetByID(context.Background(), member.ID)
	if err := bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newpassword1")); err != nil {
		t.Error("new password does not verify against stored hash")
	}
}

func TestGetCurrentUser(t *testing.T) {
	h, store := setupHandler(t)
	member := newTestUser(t, store, "member@example.com", models.RoleMember, "password1")

	rec := doRequest(t, h.GetCurrentUser, http.MethodGet, nil, member, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me returned %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data models.User `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != member.ID {
		t.Errorf("me returned user %s, want %s", envelope.Data.ID, member.ID)
	}
}

func TestUpdateProfileRecordsChanges(t *testing.T) {
	h, store := setupHandler(t)
	member := newTestUser(t, store, "member@example.com", models.RoleMember, "password1")

	rec := doRequest(t, h.Update, http.MethodPut, UpdateRequest{FirstName: "Renamed"},
		member, map[string]string{"id": member.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", rec.Code, rec.Body.String())
	}

	entries, _, err := store.Activities().ListByActor(context.Background(), member.ID, 10, 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("profile update left no audit entry")
	}
	if entries[0].Action != models.ActionUserUpdate {
		t.Errorf("audit action = %s, want %s", entries[0].Action, models.ActionUserUpdate)
	}
}
