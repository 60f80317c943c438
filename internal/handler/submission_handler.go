package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/repository"
	"github.com/forma-lms/gradebook-api/internal/service"
	"github.com/forma-lms/gradebook-api/internal/utils"
)

// SubmissionHandler wires the learner submission lifecycle endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission routes to the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/activities/:activityId/start", h.start)
	router.Get("/activities/:activityId/mine", h.mine)
	router.Patch("/:id/draft", h.saveDraft)
	router.Post("/:id/submit", h.submit)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	sessionID, err := parseQueryUint(c, "session_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session_id")
	}
	activityID, err := parseQueryUint(c, "activity_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity_id")
	}

	filter := repository.SubmissionFilter{SessionID: sessionID, ActivityID: activityID}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	// Learners only ever see their own work; the unscoped listing is a
	// trainer capability.
	actor := actorFromContext(c)
	if !actor.IsTrainer() {
		filter.UserID = &actor.ID
	}

	submissions, err := h.service.List(c.Context(), filter)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) start(c *fiber.Ctx) error {
	activityID, err := parseUintParam(c, "activityId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	submission, err := h.service.Start(c.Context(), activityID, actorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActivityNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		case errors.Is(err, service.ErrActivityNotAvailable):
			return utils.SendError(c, fiber.StatusConflict, "activity is not available")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to start submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to start submission")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission started", submission)
}

func (h *SubmissionHandler) mine(c *fiber.Ctx) error {
	activityID, err := parseUintParam(c, "activityId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	submission, err := h.service.GetMine(c.Context(), activityID, actorFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) saveDraft(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.SubmissionDraftRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.SaveDraft(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrNotOwner):
			return utils.SendError(c, fiber.StatusForbidden, "submission belongs to another user")
		case errors.Is(err, service.ErrSubmissionNotDraft):
			return utils.SendError(c, fiber.StatusConflict, "submission is no longer a draft")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to save draft")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to save draft")
		}
	}

	return utils.SendSuccess(c, "draft saved", submission)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	submission, err := h.service.Submit(c.Context(), id, actorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrNotOwner):
			return utils.SendError(c, fiber.StatusForbidden, "submission belongs to another user")
		case errors.Is(err, service.ErrAlreadySubmitted):
			return utils.SendError(c, fiber.StatusConflict, "submission already submitted")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to submit")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit")
		}
	}

	return utils.SendSuccess(c, "submission submitted", submission)
}
