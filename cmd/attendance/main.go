package main

import (
	"context"
	"time"

	"confdesk/internal/attendance/handler"
	"confdesk/internal/attendance/repository"
	"confdesk/internal/attendance/service"
	sessionrepo "confdesk/internal/sessions/repository"
	"confdesk/pkg/app"
	"confdesk/pkg/audit"
	"confdesk/pkg/clock"
	"confdesk/pkg/config"
	"confdesk/pkg/sealer"
)

const ServiceName = "attendance"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Attendance service")
	attendanceHandler := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(attendanceHandler)
	serverApp.Run()
}

func initServices(cfg *config.Config) *handler.AttendanceHandler {
	if cfg.TokenSecret == "" {
		cfg.Log.Fatal("ATTENDANCE_TOKEN_SECRET must be set for the attendance service")
	}
	signer, err := sealer.NewHMAC(cfg.TokenSecret)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize credential signer", "error", err)
	}

	auditor := initAuditor(cfg)

	sessionRepo := sessionrepo.NewMongoSessionRepository(cfg)
	attendanceRepo := repository.NewMongoAttendanceRepository(cfg)
	userRepo := repository.NewMongoUserRepository(cfg)

	ensureIndexes(cfg, attendanceRepo, userRepo)

	clk := clock.System()
	issuer := service.NewCredentialIssuer(sessionRepo, signer, clk, auditor, cfg)
	verifier := service.NewCredentialVerifier(sessionRepo, attendanceRepo, userRepo, signer, clk, auditor, cfg)

	cfg.Log.Info("Attendance service initialized", "database", cfg.MongoDatabaseName)
	return handler.NewAttendanceHandler(issuer, verifier, cfg.Log)
}

func initAuditor(cfg *config.Config) audit.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Warn("No Kafka brokers configured, audit trail disabled")
		return audit.NopPublisher{}
	}

	auditor, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize audit publisher", "error", err)
	}
	cfg.Log.Info("Audit publisher configured", "topic", cfg.AuditTopic, "brokers", len(cfg.KafkaBrokers))
	return auditor
}

func ensureIndexes(cfg *config.Config, records repository.AttendanceRepository, users repository.UserRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := records.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to ensure attendance indexes", "error", err)
	}
	if err := users.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to ensure user indexes", "error", err)
	}
}
