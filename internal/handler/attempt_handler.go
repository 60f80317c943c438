package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/service"
	"github.com/forma-lms/gradebook-api/internal/utils"
)

// AttemptHandler exposes evaluation retrieval and attempt submission.
type AttemptHandler struct {
	service service.AttemptService
	logger  zerolog.Logger
}

// NewAttemptHandler constructs the handler.
func NewAttemptHandler(service service.AttemptService, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		service: service,
		logger:  logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches evaluation routes to the router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Get("/:evaluationId", h.get)
	router.Post("/:evaluationId/attempts", h.submit)
	router.Get("/:evaluationId/attempts", h.list)
	router.Get("/:evaluationId/attempts/best", h.best)
}

func (h *AttemptHandler) get(c *fiber.Ctx) error {
	evaluationID, err := parseUintParam(c, "evaluationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	evaluation, err := h.service.GetEvaluation(c.Context(), evaluationID)
	if err != nil {
		if errors.Is(err, service.ErrEvaluationNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch evaluation")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch evaluation")
	}

	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	evaluationID, err := parseUintParam(c, "evaluationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.AttemptSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	attempt, err := h.service.SubmitAttempt(c.Context(), evaluationID, payload, actorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEvaluationNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
		case errors.Is(err, service.ErrMaxAttemptsReached):
			return utils.SendError(c, fiber.StatusConflict, "maximum attempts reached")
		case errors.Is(err, service.ErrEvaluationHasNoPoints):
			return utils.SendError(c, fiber.StatusBadRequest, "evaluation has no gradable points")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to submit attempt")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit attempt")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt recorded", attempt)
}

func (h *AttemptHandler) list(c *fiber.Ctx) error {
	evaluationID, err := parseUintParam(c, "evaluationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	attempts, err := h.service.ListAttempts(c.Context(), evaluationID, h.subjectUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrEvaluationNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list attempts")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list attempts")
	}

	return utils.SendSuccess(c, "attempts retrieved", attempts)
}

func (h *AttemptHandler) best(c *fiber.Ctx) error {
	evaluationID, err := parseUintParam(c, "evaluationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	attempt, err := h.service.BestAttempt(c.Context(), evaluationID, h.subjectUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEvaluationNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
		case errors.Is(err, service.ErrNoAttempts):
			return utils.SendError(c, fiber.StatusNotFound, "no attempts recorded")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to resolve best attempt")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to resolve best attempt")
		}
	}

	return utils.SendSuccess(c, "best attempt retrieved", attempt)
}

// subjectUserID lets trainers inspect another learner's attempts through
// the user_id query parameter. Learners always see their own.
func (h *AttemptHandler) subjectUserID(c *fiber.Ctx) uint {
	actor := actorFromContext(c)
	if actor.IsTrainer() {
		if requested, err := parseQueryUint(c, "user_id"); err == nil && requested != nil {
			return *requested
		}
	}
	return actor.ID
}
