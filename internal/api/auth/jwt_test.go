package auth

import (
	"testing"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")
	ttl := 15 * time.Minute
	svc := NewJWTService(secret, ttl)

	user := &models.User{
		ID:    "user-123",
		Email: "admin@example.com",
		Role:  models.RoleAdmin,
	}

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", claims.UserID, user.ID)
	}
	if claims.Email != user.Email {
		t.Errorf("Email = %q, want %q", claims.Email, user.Email)
	}
	if claims.Role != user.Role {
		t.Errorf("Role = %q, want %q", claims.Role, user.Role)
	}
	if claims.Issuer != "taskforge" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "taskforge")
	}
}

func TestJWTService_ExpiredToken(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")
	svc := NewJWTService(secret, -1*time.Minute)

	user := &models.User{ID: "user-123", Email: "u@example.com", Role: models.RoleMember}

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestJWTService_WrongSecret(t *testing.T) {
	user := &models.User{ID: "user-123", Email: "u@example.com", Role: models.RoleMember}

	svc1 := NewJWTService([]byte("secret-one-32-bytes-long!!!!!!!!"), 15*time.Minute)
	svc2 := NewJWTService([]byte("secret-two-32-bytes-long!!!!!!!!"), 15*time.Minute)

	token, err := svc1.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := svc2.ValidateToken(token); err == nil {
		t.Error("expected error for token signed with a different secret")
	}
}

func TestJWTService_GarbageToken(t *testing.T) {
	svc := NewJWTService([]byte("test-secret-key-32-bytes-long!!"), 15*time.Minute)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.ValidateToken(tok); err == nil {
			t.Errorf("ValidateToken(%q): expected error", tok)
		}
	}
}
