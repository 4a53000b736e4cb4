// seed provisions the admin credential, its default configuration and a sample device
// for local testing. Idempotent: existing rows are left untouched.
package main

import (
	"context"
	"log"

	"geotrack/backend/internal/config"
	"geotrack/backend/internal/db"
	devicerepo "geotrack/backend/internal/device/repository"
	configdomain "geotrack/backend/internal/deviceconfig/domain"
	configrepo "geotrack/backend/internal/deviceconfig/repository"
	identityservice "geotrack/backend/internal/identity/service"
	"geotrack/backend/internal/security"
	userrepo "geotrack/backend/internal/user/repository"
)

// devAdminPIN is used when ADMIN_PIN is unset outside production.
const devAdminPIN = "1234"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	pin := cfg.AdminPIN
	if pin == "" {
		if cfg.IsProduction() {
			log.Fatal("ADMIN_PIN must be set when APP_ENV=production")
		}
		pin = devAdminPIN
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	authSvc := identityservice.NewAuthService(identityservice.Deps{
		Users:   userrepo.NewPostgresRepository(conn),
		Hasher:  security.NewHasher(cfg.BcryptCost),
		AdminID: cfg.AdminIdentity,
	})
	created, err := authSvc.EnsureAdmin(ctx, cfg.AdminIdentity, pin)
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	if created {
		log.Printf("seed: created admin %q", cfg.AdminIdentity)
	} else {
		log.Printf("seed: admin %q already exists, skipping", cfg.AdminIdentity)
	}

	c, err := configrepo.NewPostgresRepository(conn).GetOrCreate(ctx, cfg.AdminIdentity)
	if err != nil {
		log.Fatalf("seed config: %v", err)
	}
	log.Printf("seed: config for %q x=%d y=%d device=%s", c.Owner, c.XParameter, c.YParameter, c.DeviceID)

	if _, err := devicerepo.NewPostgresRepository(conn).Upsert(ctx, configdomain.DefaultDeviceID); err != nil {
		log.Fatalf("seed device: %v", err)
	}
	log.Printf("seed: device %q registered", configdomain.DefaultDeviceID)
}
