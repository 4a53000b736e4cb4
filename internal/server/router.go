// Package server wires the HTTP router and the gRPC health server.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"geotrack/backend/internal/audit"
	audithandler "geotrack/backend/internal/audit/handler"
	devicehandler "geotrack/backend/internal/device/handler"
	confighandler "geotrack/backend/internal/deviceconfig/handler"
	devpinhandler "geotrack/backend/internal/devpin/handler"
	gpshandler "geotrack/backend/internal/gps/handler"
	healthhandler "geotrack/backend/internal/health/handler"
	identityhandler "geotrack/backend/internal/identity/handler"
	"geotrack/backend/internal/platform/httpx"
	"geotrack/backend/internal/ratelimit"
	"geotrack/backend/internal/server/middleware"
)

// ServiceInfo is returned by GET /.
type ServiceInfo struct {
	Message     string `json:"message"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// DefaultServiceInfo describes this API.
var DefaultServiceInfo = ServiceInfo{
	Message:     "Nexor GeoTrack API is running",
	Name:        "Nexor GeoTrack API",
	Description: "GPS tracking system with offline capabilities",
	Version:     "1.0.0",
}

// HTTPDeps holds the handlers and middleware dependencies for the HTTP API.
type HTTPDeps struct {
	Auth    *identityhandler.AuthHandler
	Config  *confighandler.ConfigHandler
	GPS     *gpshandler.GPSHandler
	Devices *devicehandler.DeviceHandler
	Audit   *audithandler.AuditHandler
	Health  *healthhandler.HTTPHandler
	// DevPIN is mounted at GET /dev/pin when non-nil. Leave nil in production.
	DevPIN *devpinhandler.DevPINHandler

	Verifier middleware.TokenVerifier
	// AuditLogger records authenticated mutations. If nil, no route-level audit entries are written.
	AuditLogger audit.AuditLogger
	// LoginLimiter rate limits the login routes. If nil, login is not limited.
	LoginLimiter *ratelimit.Limiter
	// CORSOrigins lists allowed origins; empty allows any origin.
	CORSOrigins []string
	Info        ServiceInfo
}

// auditSkip lists authenticated mutations that are not audited per request.
// Fix ingestion records every attempt in the sync log instead.
var auditSkip = map[string]bool{
	"POST /data":       true,
	"POST /data/batch": true,
}

// NewRouter returns the HTTP API handler.
func NewRouter(d HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIPMiddleware)
	r.Use(middleware.AccessLog(map[string]bool{"/health": true, "/ready": true}))
	r.Use(middleware.Tracing())
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(d.CORSOrigins)))

	info := d.Info
	if info.Message == "" {
		info = DefaultServiceInfo
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, info)
	})
	r.Get("/health", d.Health.Live)
	r.Get("/ready", d.Health.Ready)

	r.Route("/auth", func(r chi.Router) {
		r.With(d.LoginLimiter.Middleware).Post("/login", d.Auth.Login)
		r.With(d.LoginLimiter.Middleware).Post("/", d.Auth.Login)
		r.Post("/register", d.Auth.Register)
		r.Post("/forgot-pin", d.Auth.ForgotPin)
		r.With(middleware.RequireAuth(d.Verifier)).Post("/change-pin", d.Auth.ChangePin)
	})

	if d.DevPIN != nil {
		r.Get("/dev/pin", d.DevPIN.Get)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Verifier))
		r.Use(middleware.AuditMutations(d.AuditLogger, auditSkip))

		r.Get("/config", d.Config.Get)
		r.Put("/config", d.Config.Update)
		r.Patch("/config", d.Config.Update)

		r.Post("/data", d.GPS.Ingest)
		r.Post("/data/batch", d.GPS.IngestBatch)
		r.Get("/data", d.GPS.List)

		r.Get("/devices", d.Devices.List)
		r.Get("/devices/{device_id}", d.Devices.Get)
		r.Patch("/devices/{device_id}", d.Devices.SetStatus)
		r.Get("/devices/{device_id}/sync-logs", d.Devices.SyncLogs)

		r.Get("/audit-logs", d.Audit.List)
	})
	return r
}

func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, ratelimit.HeaderLimit, ratelimit.HeaderRemaining, ratelimit.HeaderReset},
		MaxAge:         300,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
		return opts
	}
	opts.AllowedOrigins = origins
	opts.AllowCredentials = true
	return opts
}
