package repository

import (
	"context"
	"database/sql"

	"geotrack/backend/internal/db"
	"geotrack/backend/internal/deviceconfig/domain"
)

const configColumns = `id, owner, x_parameter, y_parameter, device_id, created_at, updated_at`

// PostgresRepository persists configurations in the configs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a configuration repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetOrCreate inserts the default row if missing and returns the stored configuration.
// Concurrent first calls for the same owner create a single row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, owner string) (*domain.Configuration, error) {
	if err := ensureRow(ctx, r.db, owner); err != nil {
		return nil, err
	}
	return scanConfig(r.db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM configs WHERE owner = $1`, owner))
}

// Update applies fn to the row-locked configuration and writes it back.
func (r *PostgresRepository) Update(ctx context.Context, owner string, fn func(c *domain.Configuration) error) (*domain.Configuration, error) {
	var out *domain.Configuration
	err := db.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := ensureRow(ctx, tx, owner); err != nil {
			return err
		}
		c, err := scanConfig(tx.QueryRowContext(ctx, `SELECT `+configColumns+` FROM configs WHERE owner = $1 FOR UPDATE`, owner))
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		out, err = scanConfig(tx.QueryRowContext(ctx, `
			UPDATE configs
			SET x_parameter = $2, y_parameter = $3, device_id = $4, updated_at = now()
			WHERE id = $1
			RETURNING `+configColumns,
			c.ID, c.XParameter, c.YParameter, c.DeviceID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ensureRow(ctx context.Context, q db.DBTX, owner string) error {
	d := domain.Default(owner)
	_, err := q.ExecContext(ctx, `
		INSERT INTO configs (owner, x_parameter, y_parameter, device_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner) DO NOTHING`,
		d.Owner, d.XParameter, d.YParameter, d.DeviceID)
	return err
}

func scanConfig(row *sql.Row) (*domain.Configuration, error) {
	var c domain.Configuration
	if err := row.Scan(&c.ID, &c.Owner, &c.XParameter, &c.YParameter, &c.DeviceID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
