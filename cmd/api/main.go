package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/config"
	"github.com/forma-lms/gradebook-api/internal/database"
	"github.com/forma-lms/gradebook-api/internal/handler"
	"github.com/forma-lms/gradebook-api/internal/middleware"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/repository"
	"github.com/forma-lms/gradebook-api/internal/router"
	"github.com/forma-lms/gradebook-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Activity{},
		&models.Submission{},
		&models.Grade{},
		&models.Evaluation{},
		&models.EvaluationQuestion{},
		&models.EvaluationAttempt{},
		&models.EvaluationConfig{},
		&models.GradebookSummary{},
		&models.AuditLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	// NATS is the cross-cluster leg; the node still works without it, so a
	// missing broker downgrades to redis-only fan-out instead of aborting.
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, cross-cluster sync disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	activityRepo := repository.NewActivityRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	syncService := service.NewSyncService(redisClient, natsConn, cfg.SyncChannelBase, logger)

	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	syncService.Start(syncCtx)

	auditService := service.NewAuditService(auditRepo, logger)
	gradebookService := service.NewGradebookService(activityRepo, evaluationRepo, gradeRepo, attemptRepo, summaryRepo, redisClient, validate, logger)
	activityService := service.NewActivityService(activityRepo, validate, syncService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, activityRepo, validate, syncService, logger)
	gradingService := service.NewGradingService(gradeRepo, submissionRepo, activityRepo, gradebookService, validate, auditService, syncService, logger)
	attemptService := service.NewAttemptService(evaluationRepo, attemptRepo, gradebookService, validate, syncService, logger)
	projectionService := service.NewProjectionService(activityRepo, submissionRepo, gradeRepo, summaryRepo, redisClient, cfg.ViewCacheTTL, logger)

	activityHandler := handler.NewActivityHandler(activityService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, logger)
	attemptHandler := handler.NewAttemptHandler(attemptService, logger)
	gradebookHandler := handler.NewGradebookHandler(gradebookService, projectionService, logger)
	syncHandler := handler.NewSyncHandler(syncService, cfg.StreamKeepAlive, logger)
	auditHandler := handler.NewAuditHandler(auditService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:   activityHandler,
		SubmissionHandler: submissionHandler,
		GradingHandler:    gradingHandler,
		AttemptHandler:    attemptHandler,
		GradebookHandler:  gradebookHandler,
		SyncHandler:       syncHandler,
		AuditHandler:      auditHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
