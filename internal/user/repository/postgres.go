package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"geotrack/backend/internal/db"
	"geotrack/backend/internal/user/domain"
)

const userColumns = `id, email, hashed_pin, failed_attempt_count, locked_until, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Create inserts the user. ID, CreatedAt, and UpdatedAt are assigned by the database.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, hashed_pin, failed_attempt_count, locked_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, created_at, updated_at`,
		u.Email, u.HashedPIN, u.FailedAttemptCount, nullTime(u.LockedUntil))
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// UpdateLocked runs fn against the user row selected FOR UPDATE inside one transaction.
func (r *PostgresRepository) UpdateLocked(ctx context.Context, email string, fn MutateFunc) error {
	var fnErr error
	err := db.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 FOR UPDATE`, email)
		u, err := scanUser(row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		save, ferr := fn(u)
		fnErr = ferr
		if !save || u == nil {
			return nil
		}
		u.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET hashed_pin = $2, failed_attempt_count = $3, locked_until = $4, updated_at = $5
			WHERE id = $1`,
			u.ID, u.HashedPIN, u.FailedAttemptCount, nullTime(u.LockedUntil), u.UpdatedAt)
		return err
	})
	if err != nil {
		return err
	}
	return fnErr
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u           domain.User
		lockedUntil sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.HashedPIN, &u.FailedAttemptCount, &lockedUntil, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time.UTC()
		u.LockedUntil = &t
	}
	return &u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
