package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/api/auth"
	"github.com/good-yellow-bee/taskforge/internal/models"
)

func TestJWTAuth_ValidToken(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")
	jwtService := auth.NewJWTService(secret, 15*time.Minute)

	user := &models.User{
		ID:    "user-123",
		Email: "test@example.com",
		Role:  models.RoleAdmin,
	}

	token, err := jwtService.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	// Create handler that checks context values
	var gotUserID, gotEmail string
	var gotRole models.Role
	var gotClaims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotEmail = GetEmail(r.Context())
		gotRole = GetRole(r.Context())
		gotClaims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with middleware
	wrapped := JWTAuth(jwtService)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != user.ID {
		t.Errorf("UserID = %q, want %q", gotUserID, user.ID)
	}
	if gotEmail != user.Email {
		t.Errorf("Email = %q, want %q", gotEmail, user.Email)
	}
	if gotRole != user.Role {
		t.Errorf("Role = %q, want %q", gotRole, user.Role)
	}
	if gotClaims == nil || gotClaims.UserID != user.ID {
		t.Errorf("Claims = %+v, want claims for %q", gotClaims, user.ID)
	}
}

func TestJWTAuth_MissingToken(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")
	jwtService := auth.NewJWTService(secret, 15*time.Minute)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	wrapped := JWTAuth(jwtService)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestJWTAuth_MalformedHeader(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")
	jwtService := auth.NewJWTService(secret, 15*time.Minute)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	wrapped := JWTAuth(jwtService)(handler)

	tests := []struct {
		name   string
		header string
	}{
		{"no scheme", "just-a-token"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")
	jwtService := auth.NewJWTService(secret, 15*time.Minute)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	wrapped := JWTAuth(jwtService)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	jwtService := auth.NewJWTService([]byte("test-secret-key-32-bytes-long!!"), 15*time.Minute)
	otherService := auth.NewJWTService([]byte("a-different-secret-entirely!!!!"), 15*time.Minute)

	user := &models.User{ID: "user-123", Email: "test@example.com", Role: models.RoleMember}
	token, err := otherService.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	wrapped := JWTAuth(jwtService)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")
	// Negative TTL produces an already-expired token.
	expiredService := auth.NewJWTService(secret, -time.Minute)
	jwtService := auth.NewJWTService(secret, 15*time.Minute)

	user := &models.User{ID: "user-123", Email: "test@example.com", Role: models.RoleMember}
	token, err := expiredService.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	wrapped := JWTAuth(jwtService)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
