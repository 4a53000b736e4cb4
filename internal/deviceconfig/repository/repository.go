package repository

import (
	"context"

	"geotrack/backend/internal/deviceconfig/domain"
)

// Repository defines persistence for per-owner configuration.
type Repository interface {
	// GetOrCreate returns the owner's configuration, creating it with defaults if absent.
	GetOrCreate(ctx context.Context, owner string) (*domain.Configuration, error)
	// Update ensures the row exists, locks it, applies fn and persists the result in one transaction.
	Update(ctx context.Context, owner string, fn func(c *domain.Configuration) error) (*domain.Configuration, error)
}
