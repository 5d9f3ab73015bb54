package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "correct1horse", false},
		{"valid mixed", "Tr0ub4dor&3x", false},
		{"too short", "ab1", true},
		{"no digit", "passwordonly", true},
		{"no letter", "1234567890", true},
		{"empty", "", true},
		{"too long", strings.Repeat("a1", 40), true},
		{"exactly eight", "abcdefg1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword_CollectsAllProblems(t *testing.T) {
	err := ValidatePassword("???")
	if err == nil {
		t.Fatal("expected error")
	}

	var verr *PasswordValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *PasswordValidationError, got %T", err)
	}
	// Short, no letter, no digit.
	if len(verr.Messages) != 3 {
		t.Errorf("got %d messages, want 3: %v", len(verr.Messages), verr.Messages)
	}
}
