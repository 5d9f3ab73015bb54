package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

func setAuthContext(r *http.Request, userID string, role models.Role) *http.Request {
	return r.WithContext(WithUser(r.Context(), userID, "test@example.com", role))
}

func TestRequireRole_Allowed(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		role     models.Role
		allowed  []models.Role
		wantCode int
	}{
		{"exact match", models.RoleAdmin, []models.Role{models.RoleAdmin}, http.StatusOK},
		{"one of many", models.RoleMember, []models.Role{models.RoleAdmin, models.RoleMember}, http.StatusOK},
		{"admin bypass", models.RoleAdmin, []models.Role{models.RoleViewer}, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := RequireRole(tc.allowed...)(handler)

			req := httptest.NewRequest("GET", "/test", nil)
			req = setAuthContext(req, "user-123", tc.role)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireRole_Denied(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	tests := []struct {
		name    string
		role    models.Role
		allowed []models.Role
	}{
		{"viewer not admin", models.RoleViewer, []models.Role{models.RoleAdmin}},
		{"member not admin", models.RoleMember, []models.Role{models.RoleAdmin}},
		{"viewer not member", models.RoleViewer, []models.Role{models.RoleMember}},
		{"empty role", "", []models.Role{models.RoleViewer}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := RequireRole(tc.allowed...)(handler)

			req := httptest.NewRequest("GET", "/test", nil)
			if tc.role != "" {
				req = setAuthContext(req, "user-123", tc.role)
			}
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		role     models.Role
		wantCode int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleMember, http.StatusForbidden},
		{models.RoleViewer, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			wrapped := RequireAdmin(handler)

			req := httptest.NewRequest("GET", "/test", nil)
			req = setAuthContext(req, "user-123", tc.role)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireAdminOrSelf(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		userID     string
		role       models.Role
		resourceID string
		wantCode   int
	}{
		{"admin any resource", "admin-1", models.RoleAdmin, "user-2", http.StatusOK},
		{"self", "user-2", models.RoleMember, "user-2", http.StatusOK},
		{"viewer self", "user-3", models.RoleViewer, "user-3", http.StatusOK},
		{"member other user", "user-2", models.RoleMember, "user-9", http.StatusForbidden},
		{"missing param", "user-2", models.RoleMember, "", http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := RequireAdminOrSelf(handler)

			req := httptest.NewRequest("GET", "/test", nil)
			req = setAuthContext(req, tc.userID, tc.role)

			rctx := chi.NewRouteContext()
			if tc.resourceID != "" {
				rctx.URLParams.Add("id", tc.resourceID)
			}
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireCanCreate(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		role     models.Role
		wantCode int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleMember, http.StatusOK},
		{models.RoleViewer, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			wrapped := RequireCanCreate(handler)

			req := httptest.NewRequest("POST", "/test", nil)
			req = setAuthContext(req, "user-123", tc.role)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}
