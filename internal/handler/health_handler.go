package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/forma-lms/gradebook-api/internal/config"
	"github.com/forma-lms/gradebook-api/internal/utils"
)

// HealthResponse is the liveness payload. Uptime is measured from process
// start, not from the first request.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Uptime      string    `json:"uptime"`
}

// HealthCheck returns a handler reporting liveness for load balancers.
func HealthCheck(cfg config.Config) fiber.Handler {
	started := time.Now()

	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Uptime:      time.Since(started).Round(time.Second).String(),
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
