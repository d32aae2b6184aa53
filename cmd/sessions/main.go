package main

import (
	"context"
	"time"

	attendancerepo "confdesk/internal/attendance/repository"
	"confdesk/internal/sessions/handler"
	"confdesk/internal/sessions/repository"
	"confdesk/internal/sessions/service"
	"confdesk/internal/sessions/validator"
	"confdesk/pkg/app"
	"confdesk/pkg/config"
)

const ServiceName = "sessions"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Sessions service")
	sessionService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewSessionHandler(sessionService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.SessionService {
	sessionValidator := validator.NewSessionValidator(cfg.Log)
	sessionRepo := repository.NewMongoSessionRepository(cfg)
	hallRepo := repository.NewMongoHallRepository(cfg)
	lockRepo := repository.NewHallLockRepository(cfg)
	attendanceRepo := attendancerepo.NewMongoAttendanceRepository(cfg)

	ensureIndexes(cfg, sessionRepo, lockRepo)

	sessionService := service.NewSessionService(
		sessionRepo,
		hallRepo,
		lockRepo,
		sessionValidator,
		attendanceRepo,
		cfg,
	)

	cfg.Log.Info("Sessions service initialized", "database", cfg.MongoDatabaseName)
	return sessionService
}

func ensureIndexes(cfg *config.Config, sessions repository.SessionRepository, locks repository.HallLockRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sessions.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to ensure session indexes", "error", err)
	}
	if err := locks.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to ensure hall lock indexes", "error", err)
	}
}
