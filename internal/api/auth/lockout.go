package auth

import (
	"sync"
	"time"
)

// lockoutState tracks failed login attempts for one account.
type lockoutState struct {
	failures    int
	lockedUntil time.Time
}

// LockoutTracker counts failed login attempts per email and locks an
// account for a fixed duration once the threshold is reached.
//
// State is in-memory only and resets on restart; for a single-instance
// deployment the restart itself acts as the cooldown. Clustered
// deployments would need shared storage for this.
type LockoutTracker struct {
	mu        sync.RWMutex
	accounts  map[string]*lockoutState
	threshold int
	duration  time.Duration
}

// NewLockoutTracker creates a new lockout tracker.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	t := &LockoutTracker{
		accounts:  make(map[string]*lockoutState),
		threshold: threshold,
		duration:  duration,
	}

	go t.cleanupLoop()

	return t
}

// RecordFailure records a failed login attempt.
// Returns true if the account is now locked.
func (t *LockoutTracker) RecordFailure(email string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()

	state, ok := t.accounts[email]
	if !ok {
		state = &lockoutState{}
		t.accounts[email] = state
	}

	if now.Before(state.lockedUntil) {
		return true
	}

	// An expired lock resets the count before the new failure lands.
	if !state.lockedUntil.IsZero() && now.After(state.lockedUntil) {
		state.failures = 0
		state.lockedUntil = time.Time{}
	}

	state.failures++
	if state.failures >= t.threshold {
		state.lockedUntil = now.Add(t.duration)
		return true
	}

	return false
}

// IsLocked returns true if the account is currently locked.
func (t *LockoutTracker) IsLocked(email string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.accounts[email]
	if !ok {
		return false
	}
	return time.Now().Before(state.lockedUntil)
}

// RemainingLockoutTime returns how long until the lockout expires.
func (t *LockoutTracker) RemainingLockoutTime(email string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.accounts[email]
	if !ok {
		return 0
	}

	remaining := time.Until(state.lockedUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ClearFailures clears failed attempts on successful login.
func (t *LockoutTracker) ClearFailures(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.accounts, email)
}

// cleanupLoop periodically removes stale entries.
func (t *LockoutTracker) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		t.cleanup()
	}
}

func (t *LockoutTracker) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for email, state := range t.accounts {
		if state.failures == 0 || (!state.lockedUntil.IsZero() && now.After(state.lockedUntil)) {
			delete(t.accounts, email)
		}
	}
}
