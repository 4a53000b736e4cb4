package repository

import (
	"context"

	"geotrack/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByIdentity returns the newest entries for identity first, at most limit.
	ListByIdentity(ctx context.Context, identity string, limit int) ([]*domain.AuditLog, error)
}
