package repository

import (
	"context"
	"database/sql"

	"geotrack/backend/internal/db"
	"geotrack/backend/internal/device/domain"
)

// SyncLogPostgresRepository appends and lists sync log entries.
type SyncLogPostgresRepository struct {
	db db.DBTX
}

// NewSyncLogPostgresRepository returns a sync log repository that uses the given db.
func NewSyncLogPostgresRepository(conn db.DBTX) *SyncLogPostgresRepository {
	return &SyncLogPostgresRepository{db: conn}
}

// WithTx returns a repository that runs its queries in tx.
func (r *SyncLogPostgresRepository) WithTx(tx *sql.Tx) *SyncLogPostgresRepository {
	return &SyncLogPostgresRepository{db: tx}
}

// Append inserts e and sets its ID and CreatedAt. A zero Timestamp defaults to now.
func (r *SyncLogPostgresRepository) Append(ctx context.Context, e *domain.SyncLog) error {
	var msg sql.NullString
	if e.ErrorMessage != nil {
		msg = sql.NullString{String: *e.ErrorMessage, Valid: true}
	}
	var ts sql.NullTime
	if !e.Timestamp.IsZero() {
		ts = sql.NullTime{Time: e.Timestamp, Valid: true}
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO sync_logs (device_id, timestamp, status, error_message)
		VALUES ($1, COALESCE($2, now()), $3, $4)
		RETURNING id, timestamp, created_at`,
		e.DeviceID, ts, e.Status, msg).Scan(&e.ID, &e.Timestamp, &e.CreatedAt)
}

// ListByDevice returns the newest entries for deviceID first, at most limit.
func (r *SyncLogPostgresRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*domain.SyncLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, timestamp, status, error_message, created_at
		FROM sync_logs
		WHERE device_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`,
		deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.SyncLog
	for rows.Next() {
		var (
			e   domain.SyncLog
			msg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Timestamp, &e.Status, &msg, &e.CreatedAt); err != nil {
			return nil, err
		}
		if msg.Valid {
			e.ErrorMessage = &msg.String
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
