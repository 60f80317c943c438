package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/forma-lms/gradebook-api/internal/config"
	"github.com/forma-lms/gradebook-api/internal/handler"
	"github.com/forma-lms/gradebook-api/internal/middleware"
	"github.com/forma-lms/gradebook-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityHandler   *handler.ActivityHandler
	SubmissionHandler *handler.SubmissionHandler
	GradingHandler    *handler.GradingHandler
	AttemptHandler    *handler.AttemptHandler
	GradebookHandler  *handler.GradebookHandler
	SyncHandler       *handler.SyncHandler
	AuditHandler      *handler.AuditHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	trainerOnly := middleware.RequireRole(middleware.RoleTrainer)

	if deps.ActivityHandler != nil {
		activities := api.Group("/activities", jwtMiddleware, trainerOnly)
		deps.ActivityHandler.Register(activities)
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.GradingHandler != nil {
		grades := api.Group("/grades", jwtMiddleware, trainerOnly)
		deps.GradingHandler.Register(grades)
	}

	if deps.AttemptHandler != nil {
		evaluations := api.Group("/evaluations", jwtMiddleware)
		deps.AttemptHandler.Register(evaluations)
	}

	if deps.GradebookHandler != nil {
		gradebook := api.Group("/gradebook", jwtMiddleware)
		deps.GradebookHandler.Register(gradebook)

		roster := api.Group("/gradebook", jwtMiddleware, trainerOnly)
		deps.GradebookHandler.RegisterTrainer(roster)
	}

	if deps.SyncHandler != nil {
		sync := api.Group("/sync", jwtMiddleware)
		deps.SyncHandler.Register(sync)
	}

	if deps.AuditHandler != nil {
		audit := api.Group("/audit", jwtMiddleware, trainerOnly)
		deps.AuditHandler.Register(audit)
	}
}
