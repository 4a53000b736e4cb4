package domain

import (
	"errors"
	"time"
)

// Default lockout policy: three consecutive failures lock the credential for 15 minutes.
const (
	DefaultLockoutThreshold = 3
	DefaultLockoutWindow    = 15 * time.Minute
)

// User is a stored credential: an identity with a bcrypt PIN hash and lockout counters.
type User struct {
	ID                 int64
	Email              string // identity; the fixed admin name in single-account mode
	HashedPIN          string
	FailedAttemptCount int
	LockedUntil        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// LockoutPolicy controls when repeated PIN failures lock a credential.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// DefaultLockoutPolicy returns the 3 failures / 15 minutes policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Window: DefaultLockoutWindow}
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.HashedPIN == "" {
		return errors.New("hashed pin is required")
	}
	return nil
}

// IsLocked reports whether the lockout window is still active at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// ExpireLock clears an elapsed lock together with the failure counter.
// Returns true if the user changed.
func (u *User) ExpireLock(now time.Time) bool {
	if u.LockedUntil == nil || now.Before(*u.LockedUntil) {
		return false
	}
	u.LockedUntil = nil
	u.FailedAttemptCount = 0
	return true
}

// LockRemaining returns how long the lock still holds at now (0 when unlocked).
func (u *User) LockRemaining(now time.Time) time.Duration {
	if !u.IsLocked(now) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}

// RegisterFailure counts one failed PIN verification and locks the user once the
// policy threshold is reached. Returns true if this failure locked the user.
func (u *User) RegisterFailure(now time.Time, p LockoutPolicy) bool {
	u.FailedAttemptCount++
	u.UpdatedAt = now
	if u.FailedAttemptCount < p.Threshold {
		return false
	}
	until := now.Add(p.Window)
	u.LockedUntil = &until
	return true
}

// RegisterSuccess resets the failure counter and clears any lock.
func (u *User) RegisterSuccess(now time.Time) {
	u.FailedAttemptCount = 0
	u.LockedUntil = nil
	u.UpdatedAt = now
}

// SetPIN replaces the stored hash and clears lockout state.
func (u *User) SetPIN(hash string, now time.Time) {
	u.HashedPIN = hash
	u.RegisterSuccess(now)
}
