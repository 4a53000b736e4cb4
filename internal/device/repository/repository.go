package repository

import (
	"context"

	"geotrack/backend/internal/device/domain"
)

// Repository defines persistence for devices.
type Repository interface {
	GetByDeviceID(ctx context.Context, deviceID string) (*domain.Device, error)
	List(ctx context.Context) ([]*domain.Device, error)
	// Upsert returns the device for deviceID, creating it with status active if absent.
	Upsert(ctx context.Context, deviceID string) (*domain.Device, error)
	// UpdateStatus sets the status and returns the updated device, or nil if not found.
	UpdateStatus(ctx context.Context, deviceID, status string) (*domain.Device, error)
}

// SyncLogRepository defines persistence for the append-only sync log.
type SyncLogRepository interface {
	Append(ctx context.Context, e *domain.SyncLog) error
	// ListByDevice returns the newest entries for deviceID first, at most limit.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*domain.SyncLog, error)
}
