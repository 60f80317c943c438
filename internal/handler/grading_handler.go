package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/service"
	"github.com/forma-lms/gradebook-api/internal/utils"
)

// GradingHandler wires the trainer grading and publication endpoints.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading routes to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/submissions/:submissionId", h.grade)
	router.Post("/:gradeId/publish", h.publish)
	router.Post("/activities/:activityId/publish-all", h.publishAll)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	grade, err := h.service.Grade(c.Context(), submissionID, payload, actorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrActivityNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		case errors.Is(err, service.ErrSubmissionNotSubmitted):
			return utils.SendError(c, fiber.StatusConflict, "submission has not been submitted")
		case errors.Is(err, service.ErrScoreExceedsMax):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to grade submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to grade submission")
		}
	}

	return utils.SendSuccess(c, "submission graded", grade)
}

func (h *GradingHandler) publish(c *fiber.Ctx) error {
	gradeID, err := parseUintParam(c, "gradeId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	grade, err := h.service.PublishGrade(c.Context(), gradeID, actorFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrGradeNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "grade not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to publish grade")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to publish grade")
	}

	return utils.SendSuccess(c, "grade published", grade)
}

func (h *GradingHandler) publishAll(c *fiber.Ctx) error {
	activityID, err := parseUintParam(c, "activityId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	result, err := h.service.PublishAll(c.Context(), activityID, actorFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrActivityNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to bulk publish grades")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to bulk publish grades")
	}

	return utils.SendSuccess(c, "grades published", result)
}
