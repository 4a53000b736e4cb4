package repository

import (
	"context"
	"database/sql"
	"errors"

	"geotrack/backend/internal/db"
	"geotrack/backend/internal/device/domain"
)

const deviceColumns = `id, device_id, status, created_at, updated_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// WithTx returns a repository that runs its queries in tx.
func (r *PostgresRepository) WithTx(tx *sql.Tx) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

// GetByDeviceID returns the device for deviceID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByDeviceID(ctx context.Context, deviceID string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`, deviceID)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// List returns all devices ordered by device_id.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY device_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Upsert inserts the device if absent. An existing row keeps its status; only updated_at moves.
func (r *PostgresRepository) Upsert(ctx context.Context, deviceID string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO devices (device_id, status)
		VALUES ($1, $2)
		ON CONFLICT (device_id) DO UPDATE SET updated_at = now()
		RETURNING `+deviceColumns,
		deviceID, domain.StatusActive)
	return scanDevice(row)
}

// UpdateStatus sets the device status. Returns nil, nil if the device does not exist.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, deviceID, status string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE devices SET status = $2, updated_at = now()
		WHERE device_id = $1
		RETURNING `+deviceColumns,
		deviceID, status)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(s scanner) (*domain.Device, error) {
	var d domain.Device
	if err := s.Scan(&d.ID, &d.DeviceID, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
