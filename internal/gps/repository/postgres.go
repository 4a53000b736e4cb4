// Package repository stores GPS fixes in Postgres.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"geotrack/backend/internal/db"
	devicedomain "geotrack/backend/internal/device/domain"
	devicerepo "geotrack/backend/internal/device/repository"
	"geotrack/backend/internal/gps/domain"
)

const fixColumns = `id, device_id, lat, lon, timestamp, synced, created_at`

// PostgresStore implements Store. It shares the device and sync log repositories
// so the ingest transaction covers all three tables.
type PostgresStore struct {
	conn     *sql.DB
	devices  *devicerepo.PostgresRepository
	syncLogs *devicerepo.SyncLogPostgresRepository
}

// NewPostgresStore returns a Store backed by conn.
func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{
		conn:     conn,
		devices:  devicerepo.NewPostgresRepository(conn),
		syncLogs: devicerepo.NewSyncLogPostgresRepository(conn),
	}
}

// Ingest runs the device upsert, fix insert and success log append in one transaction.
// Any failure rolls back all three writes.
func (s *PostgresStore) Ingest(ctx context.Context, f *domain.Fix) error {
	return db.RunInTx(ctx, s.conn, func(tx *sql.Tx) error {
		if _, err := s.devices.WithTx(tx).Upsert(ctx, f.DeviceID); err != nil {
			return fmt.Errorf("upsert device: %w", err)
		}
		if err := insertFix(ctx, tx, f); err != nil {
			return fmt.Errorf("insert fix: %w", err)
		}
		if err := s.syncLogs.WithTx(tx).Append(ctx, devicedomain.NewSyncSuccess(f.DeviceID, f.CreatedAt)); err != nil {
			return fmt.Errorf("append sync log: %w", err)
		}
		return nil
	})
}

func insertFix(ctx context.Context, conn db.DBTX, f *domain.Fix) error {
	return conn.QueryRowContext(ctx, `
		INSERT INTO gps_data (device_id, lat, lon, timestamp, synced)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, synced, created_at`,
		f.DeviceID, f.Lat, f.Lon, f.Timestamp).Scan(&f.ID, &f.Synced, &f.CreatedAt)
}

// List returns fixes ordered by timestamp descending.
func (s *PostgresStore) List(ctx context.Context, deviceID string, limit int) ([]*domain.Fix, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if deviceID == "" {
		rows, err = s.conn.QueryContext(ctx, `
			SELECT `+fixColumns+` FROM gps_data
			ORDER BY timestamp DESC, id DESC
			LIMIT $1`, limit)
	} else {
		rows, err = s.conn.QueryContext(ctx, `
			SELECT `+fixColumns+` FROM gps_data
			WHERE device_id = $1
			ORDER BY timestamp DESC, id DESC
			LIMIT $2`, deviceID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Fix
	for rows.Next() {
		var f domain.Fix
		if err := rows.Scan(&f.ID, &f.DeviceID, &f.Lat, &f.Lon, &f.Timestamp, &f.Synced, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
