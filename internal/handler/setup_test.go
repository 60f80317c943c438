package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/config"
	"github.com/forma-lms/gradebook-api/internal/handler"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/repository"
	"github.com/forma-lms/gradebook-api/internal/router"
	"github.com/forma-lms/gradebook-api/internal/service"
	"github.com/forma-lms/gradebook-api/internal/utils"
)

// testJWT reads the acting user from request headers so one app instance can
// serve both trainer and learner calls within a single flow test.
func testJWT(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			c.Locals("user_id", uint(parsed))
		}
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func setupGradebookApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Activity{},
		&models.Submission{},
		&models.Grade{},
		&models.Evaluation{},
		&models.EvaluationQuestion{},
		&models.EvaluationAttempt{},
		&models.EvaluationConfig{},
		&models.GradebookSummary{},
		&models.AuditLog{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	activityRepo := repository.NewActivityRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	syncService := service.NewSyncService(nil, nil, "", logger)
	auditService := service.NewAuditService(auditRepo, logger)
	gradebookService := service.NewGradebookService(activityRepo, evaluationRepo, gradeRepo, attemptRepo, summaryRepo, nil, validate, logger)
	activityService := service.NewActivityService(activityRepo, validate, syncService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, activityRepo, validate, syncService, logger)
	gradingService := service.NewGradingService(gradeRepo, submissionRepo, activityRepo, gradebookService, validate, auditService, syncService, logger)
	attemptService := service.NewAttemptService(evaluationRepo, attemptRepo, gradebookService, validate, syncService, logger)
	projectionService := service.NewProjectionService(activityRepo, submissionRepo, gradeRepo, summaryRepo, nil, 0, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		GradingHandler:    handler.NewGradingHandler(gradingService, logger),
		AttemptHandler:    handler.NewAttemptHandler(attemptService, logger),
		GradebookHandler:  handler.NewGradebookHandler(gradebookService, projectionService, logger),
		AuditHandler:      handler.NewAuditHandler(auditService, logger),
		JWTMiddleware:     testJWT,
	})

	return app, db
}

func performJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}, userID uint, role string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
	req.Header.Set("X-Test-Role", role)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) utils.APIResponse {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))

	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}

	return utils.APIResponse{Success: envelope.Success, Message: envelope.Message}
}
