package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"geotrack/backend/internal/db"
	"geotrack/backend/internal/db/migrate"
	"geotrack/backend/internal/user/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if _, err := migrate.Run(dsn, migrate.Up); err != nil {
		t.Skipf("migrate up failed: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Skipf("Database connection failed (expected in test environment): %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func uniqueEmail(t *testing.T) string {
	return fmt.Sprintf("%s-%d@test.local", t.Name(), time.Now().UnixNano())
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	repo := NewPostgresRepository(openTestDB(t))
	ctx := context.Background()
	email := uniqueEmail(t)

	u := &domain.User{Email: email, HashedPIN: "hash"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == 0 {
		t.Error("Create should assign ID")
	}
	if err := repo.Create(ctx, &domain.User{Email: email, HashedPIN: "other"}); err != ErrEmailTaken {
		t.Errorf("duplicate Create: want ErrEmailTaken, got %v", err)
	}

	got, err := repo.GetByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got == nil || got.HashedPIN != "hash" {
		t.Fatalf("GetByEmail = %+v", got)
	}

	missing, err := repo.GetByEmail(ctx, "missing-"+email)
	if err != nil || missing != nil {
		t.Errorf("GetByEmail missing = %v, %v; want nil, nil", missing, err)
	}
}

func TestPostgresRepository_UpdateLockedSerializesFailures(t *testing.T) {
	repo := NewPostgresRepository(openTestDB(t))
	ctx := context.Background()
	email := uniqueEmail(t)
	if err := repo.Create(ctx, &domain.User{Email: email, HashedPIN: "hash"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	policy := domain.DefaultLockoutPolicy()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.UpdateLocked(ctx, email, func(u *domain.User) (bool, error) {
				u.RegisterFailure(time.Now().UTC(), policy)
				return true, nil
			})
			if err != nil {
				t.Errorf("UpdateLocked: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.FailedAttemptCount != 3 {
		t.Errorf("FailedAttemptCount = %d, want 3", got.FailedAttemptCount)
	}
	if !got.IsLocked(time.Now().UTC()) {
		t.Error("user should be locked after three concurrent failures")
	}
}

func TestPostgresRepository_UpdateLockedMissingUser(t *testing.T) {
	repo := NewPostgresRepository(openTestDB(t))
	called := false
	err := repo.UpdateLocked(context.Background(), uniqueEmail(t), func(u *domain.User) (bool, error) {
		called = true
		if u != nil {
			t.Errorf("user = %+v, want nil", u)
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("UpdateLocked: %v", err)
	}
	if !called {
		t.Error("mutate func was not called")
	}
}
