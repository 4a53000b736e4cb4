package repository

import (
	"context"
	"errors"

	"geotrack/backend/internal/user/domain"
)

// ErrEmailTaken is returned by Create when a user with the same email exists.
var ErrEmailTaken = errors.New("email already exists")

// MutateFunc receives the row-locked user (nil if not found) and reports whether
// the (possibly modified) user must be saved. A returned error is passed back to
// the caller of UpdateLocked after the save decision is applied.
type MutateFunc func(u *domain.User) (save bool, err error)

// Repository defines persistence for user credentials.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create inserts u and sets its ID and timestamps. Returns ErrEmailTaken on duplicates.
	Create(ctx context.Context, u *domain.User) error
	// UpdateLocked loads the user by email under a row lock, calls fn, and persists
	// the user when fn asks to. Concurrent callers for the same email are serialized.
	UpdateLocked(ctx context.Context, email string, fn MutateFunc) error
}
