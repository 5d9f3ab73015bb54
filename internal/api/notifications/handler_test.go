package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
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

func newTestUser(t *testing.T, store *storage.SQLiteStorage, email string) *models.User {
	t.Helper()

	user := models.NewUser(email, "Test", "User", models.RoleMember)
	user.ID = uuid.New().String()
	user.PasswordHash = "hash"

	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func newTestNotification(t *testing.T, store *storage.SQLiteStorage, recipientID, message string) *models.Notification {
	t.Helper()

	n := models.NewNotification(recipientID, models.NotificationTaskAssigned, message)
	n.ID = uuid.New().String()

	if err := store.Notifications().Create(context.Background(), n); err != nil {
		t.Fatalf("create notification: %v", err)
	}
	return n
}

func doRequest(t *testing.T, handler http.HandlerFunc, method, target string, actor *models.User, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)

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

type listResponse struct {
	Data struct {
		Notifications struct {
			Items []models.Notification `json:"items"`
			Total int64                 `json:"total"`
		} `json:"notifications"`
		UnreadCount int64 `json:"unread_count"`
	} `json:"data"`
}

func TestListScopedToRecipient(t *testing.T) {
	h, store := setupHandler(t)
	alice := newTestUser(t, store, "alice@example.com")
	bob := newTestUser(t, store, "bob@example.com")

	newTestNotification(t, store, alice.ID, "for alice")
	newTestNotification(t, store, bob.ID, "for bob")

	rec := doRequest(t, h.List, http.MethodGet, "/", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Notifications.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Data.Notifications.Total)
	}
	if resp.Data.UnreadCount != 1 {
		t.Errorf("unread_count = %d, want 1", resp.Data.UnreadCount)
	}
	if len(resp.Data.Notifications.Items) == 1 && resp.Data.Notifications.Items[0].Message != "for alice" {
		t.Errorf("message = %q, want alice's notification", resp.Data.Notifications.Items[0].Message)
	}
}

func TestMarkReadRecipientOnly(t *testing.T) {
	h, store := setupHandler(t)
	alice := newTestUser(t, store, "alice@example.com")
	bob := newTestUser(t, store, "bob@example.com")

	n := newTestNotification(t, store, alice.ID, "for alice")

	// Another user cannot mark it, and cannot learn it exists.
	rec := doRequest(t, h.MarkRead, http.MethodPost, "/", bob, map[string]string{"id": n.ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign mark read returned %d, want 404", rec.Code)
	}

	rec = doRequest(t, h.MarkRead, http.MethodPost, "/", alice, map[string]string{"id": n.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mark read returned %d: %s", rec.Code, rec.Body.String())
	}

	unread, err := store.Notifications().CountUnread(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 0 {
		t.Errorf("unread after mark = %d, want 0", unread)
	}
}

func TestListUnreadFilter(t *testing.T) {
	h, store := setupHandler(t)
	alice := newTestUser(t, store, "alice@example.com")

	read := newTestNotification(t, store, alice.ID, "seen")
	newTestNotification(t, store, alice.ID, "fresh")

	if err := store.Notifications().MarkRead(context.Background(), read.ID, alice.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	rec := doRequest(t, h.List, http.MethodGet, "/?unread=true", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Notifications.Total != 1 {
		t.Errorf("unread total = %d, want 1", resp.Data.Notifications.Total)
	}
	if len(resp.Data.Notifications.Items) == 1 && resp.Data.Notifications.Items[0].Message != "fresh" {
		t.Errorf("unread item = %q, want fresh", resp.Data.Notifications.Items[0].Message)
	}
}

func TestMarkAllRead(t *testing.T) {
	h, store := setupHandler(t)
	alice := newTestUser(t, store, "alice@example.com")

	newTestNotification(t, store, alice.ID, "one")
	newTestNotification(t, store, alice.ID, "two")

	rec := doRequest(t, h.MarkAllRead, http.MethodPost, "/", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark all returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Marked int64 `json:"marked"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Marked != 2 {
		t.Errorf("marked = %d, want 2", resp.Data.Marked)
	}

	unread, _ := store.Notifications().CountUnread(context.Background(), alice.ID)
	if unread != 0 {
		t.Errorf("unread after mark all = %d, want 0", unread)
	}
}
