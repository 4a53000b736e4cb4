package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geotrack/backend/internal/audit"
	audithandler "geotrack/backend/internal/audit/handler"
	auditrepo "geotrack/backend/internal/audit/repository"
	"geotrack/backend/internal/config"
	"geotrack/backend/internal/db"
	devicehandler "geotrack/backend/internal/device/handler"
	devicerepo "geotrack/backend/internal/device/repository"
	deviceservice "geotrack/backend/internal/device/service"
	confighandler "geotrack/backend/internal/deviceconfig/handler"
	configrepo "geotrack/backend/internal/deviceconfig/repository"
	configservice "geotrack/backend/internal/deviceconfig/service"
	"geotrack/backend/internal/devpin"
	devpinhandler "geotrack/backend/internal/devpin/handler"
	gpshandler "geotrack/backend/internal/gps/handler"
	gpsrepo "geotrack/backend/internal/gps/repository"
	gpsservice "geotrack/backend/internal/gps/service"
	healthhandler "geotrack/backend/internal/health/handler"
	identityhandler "geotrack/backend/internal/identity/handler"
	identityservice "geotrack/backend/internal/identity/service"
	"geotrack/backend/internal/mail"
	"geotrack/backend/internal/policy/engine"
	"geotrack/backend/internal/ratelimit"
	"geotrack/backend/internal/security"
	"geotrack/backend/internal/server"
	"geotrack/backend/internal/server/middleware"
	"geotrack/backend/internal/session"
	"geotrack/backend/internal/telemetry"
	telemetryotel "geotrack/backend/internal/telemetry/otel"
	"geotrack/backend/internal/telemetry/producer"
	userdomain "geotrack/backend/internal/user/domain"
	userrepo "geotrack/backend/internal/user/repository"
)

const httpShutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	secret, err := security.LoadSecret(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("jwt secret: %v", err)
	}
	tokens, err := security.NewTokenProvider(secret, cfg.JWTIssuer, cfg.AccessTTL())
	if err != nil {
		log.Fatalf("token provider: %v", err)
	}

	auditRepo := auditrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditRepo, middleware.ClientIP)

	var sender mail.Sender = mail.LogSender{}
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	authDeps := identityservice.Deps{
		Users:   userrepo.NewPostgresRepository(conn),
		Hasher:  security.NewHasher(cfg.BcryptCost),
		Tokens:  tokens,
		Audit:   auditLogger,
		Mail:    sender,
		Policy:  userdomain.LockoutPolicy{Threshold: cfg.LockoutThreshold, Window: cfg.LockoutWindow()},
		AdminID: cfg.AdminIdentity,
	}
	var devPINs *devpin.MemoryStore
	if cfg.DevPINReturn && !cfg.IsProduction() {
		devPINs = devpin.NewMemoryStore()
		authDeps.DevPINs = devPINs
		log.Println("auth: dev PIN mode enabled, GET /dev/pin is mounted")
	}
	authSvc := identityservice.NewAuthService(authDeps)

	if cfg.AdminPIN != "" {
		created, err := authSvc.EnsureAdmin(ctx, cfg.AdminIdentity, cfg.AdminPIN)
		if err != nil {
			log.Fatalf("provision admin: %v", err)
		}
		if created {
			log.Printf("auth: provisioned admin credential %q", cfg.AdminIdentity)
		}
	}

	policy, err := engine.NewOPAEvaluator(ctx, cfg.FixFutureSkew())
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	emitter := telemetry.MultiEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.SyncKafkaBrokersList(), cfg.SyncKafkaTopic)
	if kafkaProducer != nil {
		emitter = append(emitter, kafkaProducer)
		log.Printf("telemetry: publishing sync events to kafka topic %q", cfg.SyncKafkaTopic)
	}

	devices := devicerepo.NewPostgresRepository(conn)
	syncLogs := devicerepo.NewSyncLogPostgresRepository(conn)
	gpsSvc := gpsservice.NewService(gpsrepo.NewPostgresStore(conn), devices, syncLogs, policy, emitter)

	var loginLimiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("ratelimit: redis unavailable, login rate limiting disabled: %v", err)
		} else {
			defer client.Close()
			loginLimiter = ratelimit.NewLimiter(ratelimit.NewRedisCounter(client), cfg.LoginRateLimit, cfg.LoginRateWindowDuration(), "ratelimit:login:")
		}
	}

	checker := healthhandler.NewChecker(conn, policy)
	httpDeps := server.HTTPDeps{
		Auth:         identityhandler.NewAuthHandler(authSvc),
		Config:       confighandler.NewConfigHandler(configservice.NewService(configrepo.NewPostgresRepository(conn))),
		GPS:          gpshandler.NewGPSHandler(gpsSvc),
		Devices:      devicehandler.NewDeviceHandler(deviceservice.NewRegistry(devices, syncLogs)),
		Audit:        audithandler.NewAuditHandler(auditRepo),
		Health:       healthhandler.NewHTTPHandler(checker),
		Verifier:     session.NewVerifier(tokens),
		AuditLogger:  auditLogger,
		LoginLimiter: loginLimiter,
		CORSOrigins:  cfg.CORSOrigins(),
		Info:         server.DefaultServiceInfo,
	}
	if devPINs != nil {
		httpDeps.DevPIN = devpinhandler.NewDevPINHandler(devPINs)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(httpDeps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	grpcSrv := server.NewGRPCServer(server.Deps{
		Health:     healthhandler.NewServer(checker),
		Reflection: !cfg.IsProduction(),
	})
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		go func() {
			log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Println("shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcSrv.GracefulStop()

	// Let in-flight async sync events finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		log.Printf("kafka producer close: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("servers stopped")
}
