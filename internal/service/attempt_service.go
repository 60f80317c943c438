package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/observability"
	"github.com/forma-lms/gradebook-api/internal/repository"
)

// ErrEvaluationNotFound indicates an evaluation could not be found.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// ErrMaxAttemptsReached indicates the learner exhausted the attempt budget.
var ErrMaxAttemptsReached = errors.New("maximum attempts reached")

// ErrEvaluationHasNoPoints indicates an evaluation whose questions sum to
// zero points; scoring it would divide by zero.
var ErrEvaluationHasNoPoints = errors.New("evaluation has no gradable points")

// AttemptService is the auto-grading path for quiz-style evaluations.
type AttemptService interface {
	GetEvaluation(ctx context.Context, evaluationID uint) (dto.EvaluationResponse, error)
	SubmitAttempt(ctx context.Context, evaluationID uint, payload dto.AttemptSubmitRequest, actor Actor) (dto.AttemptResponse, error)
	ListAttempts(ctx context.Context, evaluationID uint, userID uint) ([]dto.AttemptResponse, error)
	BestAttempt(ctx context.Context, evaluationID uint, userID uint) (dto.AttemptResponse, error)
}

// ErrNoAttempts indicates the learner has not attempted the evaluation yet.
var ErrNoAttempts = errors.New("no attempts recorded")

type attemptService struct {
	evaluations repository.EvaluationRepository
	attempts    repository.AttemptRepository
	gradebook   SummaryRecomputer
	validator   *validator.Validate
	notifier    ChangeNotifier
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAttemptService constructs the evaluation attempt engine.
func NewAttemptService(
	evaluations repository.EvaluationRepository,
	attempts repository.AttemptRepository,
	gradebook SummaryRecomputer,
	validate *validator.Validate,
	notifier ChangeNotifier,
	logger zerolog.Logger,
) AttemptService {
	return &attemptService{
		evaluations: evaluations,
		attempts:    attempts,
		gradebook:   gradebook,
		validator:   validate,
		notifier:    notifier,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

func (s *attemptService) GetEvaluation(ctx context.Context, evaluationID uint) (dto.EvaluationResponse, error) {
	evaluation, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation), nil
}

// SubmitAttempt auto-scores choice and boolean questions by exact match.
// Open questions contribute their points to the denominator but score zero
// here; the attempt path has no manual review step.
func (s *attemptService) SubmitAttempt(ctx context.Context, evaluationID uint, payload dto.AttemptSubmitRequest, actor Actor) (dto.AttemptResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AttemptResponse{}, err
	}

	evaluation, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrEvaluationNotFound
		}
		return dto.AttemptResponse{}, err
	}

	previous, err := s.attempts.CountByEvaluationAndUser(ctx, evaluationID, actor.ID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	if evaluation.MaxAttempts > 0 && previous >= int64(evaluation.MaxAttempts) {
		return dto.AttemptResponse{}, ErrMaxAttemptsReached
	}

	earned, total := scoreAnswers(evaluation.Questions, payload.Answers)
	if total <= 0 {
		return dto.AttemptResponse{}, ErrEvaluationHasNoPoints
	}

	percentage := math.Round(earned / total * 100)
	now := s.now()

	answers := make(datatypes.JSONMap, len(payload.Answers))
	for questionID, answer := range payload.Answers {
		answers[questionID] = answer
	}

	attempt := models.EvaluationAttempt{
		EvaluationID:  evaluationID,
		UserID:        actor.ID,
		Answers:       answers,
		Score:         earned,
		TotalPoints:   total,
		Percentage:    percentage,
		IsPassed:      percentage >= evaluation.PassingScore,
		AttemptNumber: int(previous) + 1,
		StartedAt:     now,
		SubmittedAt:   now,
	}

	if err := s.attempts.Create(ctx, &attempt); err != nil {
		return dto.AttemptResponse{}, err
	}

	observability.AttemptsScored().Inc()
	s.logger.Info().
		Uint("evaluation_id", evaluationID).
		Uint("user_id", actor.ID).
		Int("attempt_number", attempt.AttemptNumber).
		Float64("percentage", percentage).
		Msg("evaluation attempt scored")

	if _, err := s.gradebook.Recompute(ctx, evaluation.SessionID, actor.ID); err != nil {
		s.logger.Warn().Err(err).Uint("session_id", evaluation.SessionID).Uint("user_id", actor.ID).Msg("summary recompute after attempt failed")
	}

	if s.notifier != nil {
		// Auto-grading produces a scored outcome, so subscribers are poked
		// through the grades channel of the change contract.
		s.notifier.PublishChange(ctx, dto.ChangeEvent{
			Scope: evaluation.SessionID,
			Table: dto.ChangeTableGrades,
			Event: dto.ChangeEventInsert,
		})
	}

	return dto.NewAttemptResponse(attempt), nil
}

func (s *attemptService) ListAttempts(ctx context.Context, evaluationID uint, userID uint) ([]dto.AttemptResponse, error) {
	attempts, err := s.attempts.ListByEvaluationAndUser(ctx, evaluationID, userID)
	if err != nil {
		return nil, err
	}

	return dto.NewAttemptResponseSlice(attempts), nil
}

func (s *attemptService) BestAttempt(ctx context.Context, evaluationID uint, userID uint) (dto.AttemptResponse, error) {
	attempts, err := s.attempts.ListByEvaluationAndUser(ctx, evaluationID, userID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if len(attempts) == 0 {
		return dto.AttemptResponse{}, ErrNoAttempts
	}

	return dto.NewAttemptResponse(BestAttempt(attempts)), nil
}

func scoreAnswers(questions []models.EvaluationQuestion, answers map[string]string) (earned, total float64) {
	for _, question := range questions {
		total += question.Points
		if !question.AutoScorable() {
			continue
		}

		answer, ok := answers[strconv.FormatUint(uint64(question.ID), 10)]
		if !ok {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(question.CorrectAnswer)) {
			earned += question.Points
		}
	}

	return earned, total
}
