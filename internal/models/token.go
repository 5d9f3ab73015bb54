package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// RefreshToken is one stored refresh credential. Only the SHA-256 hash is
// persisted; the plaintext goes to the client once and is never recoverable.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// NewRefreshToken generates a refresh token for the user.
// Returns the stored model and the plaintext token to send to the client.
func NewRefreshToken(userID string, ttl time.Duration) (*RefreshToken, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)

	now := time.Now()
	return &RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(plain),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, plain, nil
}

// HashToken hashes a plaintext refresh token for storage and lookup.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// IsExpired returns true if the token has passed its expiry.
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsValid returns true if the token is neither revoked nor expired.
func (t *RefreshToken) IsValid() bool {
	return !t.Revoked && !t.IsExpired()
}
