package repository

import (
	"context"

	"geotrack/backend/internal/gps/domain"
)

// Store persists fixes. Ingest writes the device, the fix and its success sync log atomically.
type Store interface {
	// Ingest upserts the device, inserts f with synced=true and appends a success
	// sync log entry in one transaction. f.ID, f.Synced and f.CreatedAt are set on success.
	Ingest(ctx context.Context, f *domain.Fix) error
	// List returns fixes newest first, at most limit. An empty deviceID lists all devices.
	List(ctx context.Context, deviceID string, limit int) ([]*domain.Fix, error)
}
