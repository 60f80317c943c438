package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/service"
	"github.com/forma-lms/gradebook-api/internal/utils"
)

// GradebookHandler serves aggregation summaries and the read projections.
type GradebookHandler struct {
	gradebook   service.GradebookService
	projections service.ProjectionService
	logger      zerolog.Logger
}

// NewGradebookHandler constructs the handler.
func NewGradebookHandler(gradebook service.GradebookService, projections service.ProjectionService, logger zerolog.Logger) *GradebookHandler {
	return &GradebookHandler{
		gradebook:   gradebook,
		projections: projections,
		logger:      logger.With().Str("component", "gradebook_handler").Logger(),
	}
}

// Register attaches the learner-facing gradebook routes.
func (h *GradebookHandler) Register(router fiber.Router) {
	router.Get("/sessions/:sessionId/me", h.learnerView)
	router.Get("/sessions/:sessionId/summary", h.summary)
	router.Post("/sessions/:sessionId/recompute", h.recompute)
}

// RegisterTrainer attaches the trainer-only roster and config routes.
func (h *GradebookHandler) RegisterTrainer(router fiber.Router) {
	router.Get("/sessions/:sessionId/roster", h.roster)
	router.Get("/sessions/:sessionId/config", h.getConfig)
	router.Put("/sessions/:sessionId/config", h.saveConfig)
}

func (h *GradebookHandler) learnerView(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "sessionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	view, err := h.projections.LearnerView(c.Context(), sessionID, h.subjectUserID(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build learner view")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build learner view")
	}

	return utils.SendSuccess(c, "learner view retrieved", view)
}

func (h *GradebookHandler) summary(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "sessionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	summary, err := h.gradebook.GetSummary(c.Context(), sessionID, h.subjectUserID(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch summary")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch summary")
	}

	return utils.SendSuccess(c, "summary retrieved", summary)
}

func (h *GradebookHandler) recompute(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "sessionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	summary, err := h.gradebook.Recompute(c.Context(), sessionID, h.subjectUserID(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to recompute summary")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to recompute summary")
	}

	return utils.SendSuccess(c, "summary recomputed", summary)
}

func (h *GradebookHandler) roster(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "sessionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	roster, err := h.projections.TrainerRoster(c.Context(), sessionID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build trainer roster")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build trainer roster")
	}

	return utils.SendSuccess(c, "roster retrieved", roster)
}

func (h *GradebookHandler) getConfig(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "sessionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	config, err := h.gradebook.GetConfig(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrConfigNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "config not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch evaluation config")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch evaluation config")
	}

	return utils.SendSuccess(c, "config retrieved", config)
}

func (h *GradebookHandler) saveConfig(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "sessionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.ConfigUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	config, err := h.gradebook.SaveConfig(c.Context(), sessionID, payload, actorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to save evaluation config")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to save evaluation config")
	}

	return utils.SendSuccess(c, "config saved", config)
}

// subjectUserID lets trainers read another learner's view and summary
// through the user_id query parameter.
func (h *GradebookHandler) subjectUserID(c *fiber.Ctx) uint {
	actor := actorFromContext(c)
	if actor.IsTrainer() {
		if requested, err := parseQueryUint(c, "user_id"); err == nil && requested != nil {
			return *requested
		}
	}
	return actor.ID
}
