package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/observability"
	"github.com/forma-lms/gradebook-api/internal/repository"
	"github.com/forma-lms/gradebook-api/internal/score"
)

// SummaryRecomputer is the slice of the aggregation engine the mutation
// services depend on.
type SummaryRecomputer interface {
	Recompute(ctx context.Context, sessionID, userID uint) (dto.SummaryResponse, error)
}

// GradebookService combines grades and best evaluation attempts into the
// per-learner weighted average and summary status. Recompute is a pure,
// repeatable function over persisted data; re-running it any number of
// times yields the same stored summary.
type GradebookService interface {
	SummaryRecomputer
	GetSummary(ctx context.Context, sessionID, userID uint) (dto.SummaryResponse, error)
	GetConfig(ctx context.Context, sessionID uint) (dto.ConfigResponse, error)
	SaveConfig(ctx context.Context, sessionID uint, payload dto.ConfigUpdateRequest, actor Actor) (dto.ConfigResponse, error)
}

// ErrConfigNotFound indicates the session has no stored weighting config.
var ErrConfigNotFound = errors.New("evaluation config not found")

type gradebookService struct {
	activities  repository.ActivityRepository
	evaluations repository.EvaluationRepository
	grades      repository.GradeRepository
	attempts    repository.AttemptRepository
	summaries   repository.SummaryRepository
	cache       *redis.Client
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradebookService constructs the aggregation engine.
func NewGradebookService(
	activities repository.ActivityRepository,
	evaluations repository.EvaluationRepository,
	grades repository.GradeRepository,
	attempts repository.AttemptRepository,
	summaries repository.SummaryRepository,
	cache *redis.Client,
	validate *validator.Validate,
	logger zerolog.Logger,
) GradebookService {
	return &gradebookService{
		activities:  activities,
		evaluations: evaluations,
		grades:      grades,
		attempts:    attempts,
		summaries:   summaries,
		cache:       cache,
		validator:   validate,
		logger:      logger.With().Str("component", "gradebook_service").Logger(),
		tracer:      otel.Tracer("github.com/forma-lms/gradebook-api/internal/service/gradebook"),
		now:         time.Now,
	}
}

func (s *gradebookService) Recompute(ctx context.Context, sessionID, userID uint) (dto.SummaryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "gradebook.recompute", trace.WithAttributes(
		attribute.Int64("gradebook.session_id", int64(sessionID)),
		attribute.Int64("gradebook.user_id", int64(userID)),
	))
	defer span.End()

	items, passingScore, err := s.resolveConfig(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return dto.SummaryResponse{}, err
	}

	grades, err := s.grades.List(ctx, repository.GradeFilter{SessionID: &sessionID, UserID: &userID})
	if err != nil {
		span.RecordError(err)
		return dto.SummaryResponse{}, err
	}

	gradesByActivity := make(map[uint]models.Grade, len(grades))
	for _, grade := range grades {
		gradesByActivity[grade.ActivityID] = grade
	}

	var (
		totalWeighted float64
		totalWeight   float64
		completed     int
		pointsEarned  float64
	)

	for _, item := range items {
		value, earned, ok := s.itemScore(ctx, item, userID, gradesByActivity)
		if !ok {
			continue
		}
		totalWeighted += value * item.Weight
		totalWeight += item.Weight
		completed++
		pointsEarned += earned
	}

	total := len(items)
	summary := models.GradebookSummary{
		SessionID:           sessionID,
		UserID:              userID,
		TotalActivities:     total,
		CompletedActivities: completed,
		PendingActivities:   total - completed,
		TotalPointsEarned:   pointsEarned,
		ComputedAt:          s.now(),
	}

	if totalWeight > 0 {
		average := score.Round2(totalWeighted / totalWeight)
		summary.WeightedAverage = &average
	}

	summary.OverallStatus, summary.IsPassing = deriveStatus(completed, total, summary.WeightedAverage, passingScore)

	if err := s.summaries.Upsert(ctx, &summary); err != nil {
		span.RecordError(err)
		return dto.SummaryResponse{}, err
	}

	observability.Recomputes().Inc()
	s.invalidateLearnerView(ctx, sessionID, userID)

	return dto.NewSummaryResponse(summary), nil
}

func (s *gradebookService) GetSummary(ctx context.Context, sessionID, userID uint) (dto.SummaryResponse, error) {
	summary, err := s.summaries.GetBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.Recompute(ctx, sessionID, userID)
		}
		return dto.SummaryResponse{}, err
	}

	return dto.NewSummaryResponse(summary), nil
}

func (s *gradebookService) GetConfig(ctx context.Context, sessionID uint) (dto.ConfigResponse, error) {
	config, err := s.evaluations.GetConfigBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ConfigResponse{}, ErrConfigNotFound
		}
		return dto.ConfigResponse{}, err
	}

	return dto.NewConfigResponse(config)
}

// SaveConfig replaces the session's weighting config wholesale. Stored
// summaries are not rewritten here; the next recompute picks the new
// weights up, and recompute stays a pure function of the source tables.
func (s *gradebookService) SaveConfig(ctx context.Context, sessionID uint, payload dto.ConfigUpdateRequest, actor Actor) (dto.ConfigResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConfigResponse{}, err
	}

	encoded, err := json.Marshal(payload.Items)
	if err != nil {
		return dto.ConfigResponse{}, err
	}

	config, err := s.evaluations.GetConfigBySession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ConfigResponse{}, err
		}
		config = models.EvaluationConfig{SessionID: sessionID, PassingScore: 10}
	}

	config.Items = datatypes.JSON(encoded)
	if payload.PassingScore != nil {
		config.PassingScore = *payload.PassingScore
	}

	if err := s.evaluations.UpsertConfig(ctx, &config); err != nil {
		return dto.ConfigResponse{}, err
	}

	s.logger.Info().
		Uint("session_id", sessionID).
		Uint("actor_id", actor.ID).
		Int("items", len(payload.Items)).
		Msg("evaluation config saved")

	return dto.NewConfigResponse(config)
}

// resolveConfig loads the session's evaluation config, falling back to all
// activities and evaluations of the session with their own weights when no
// config row exists.
func (s *gradebookService) resolveConfig(ctx context.Context, sessionID uint) ([]models.EvaluationConfigItem, float64, error) {
	config, err := s.evaluations.GetConfigBySession(ctx, sessionID)
	if err == nil {
		items, decodeErr := config.DecodeItems()
		if decodeErr != nil {
			return nil, 0, decodeErr
		}
		return items, config.PassingScore, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, err
	}

	published := models.ActivityStatusPublished
	activities, err := s.activities.List(ctx, repository.ActivityFilter{SessionID: &sessionID, Status: &published})
	if err != nil {
		return nil, 0, err
	}

	evaluations, err := s.evaluations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}

	items := make([]models.EvaluationConfigItem, 0, len(activities)+len(evaluations))
	for _, activity := range activities {
		items = append(items, models.EvaluationConfigItem{ItemID: activity.ID, Kind: models.ConfigItemActivity, Weight: activity.Weight})
	}
	for _, evaluation := range evaluations {
		items = append(items, models.EvaluationConfigItem{ItemID: evaluation.ID, Kind: models.ConfigItemEvaluation, Weight: 1})
	}

	return items, score.Scale / 2, nil
}

// itemScore resolves one config item to its canonical 0-20 score and the raw
// points earned. ok is false when the learner has no data for the item or
// the item no longer resolves; such items are skipped entirely rather than
// counted as zero.
func (s *gradebookService) itemScore(ctx context.Context, item models.EvaluationConfigItem, userID uint, gradesByActivity map[uint]models.Grade) (float64, float64, bool) {
	switch item.Kind {
	case models.ConfigItemActivity:
		grade, ok := gradesByActivity[item.ItemID]
		if !ok {
			if _, err := s.activities.GetByID(ctx, item.ItemID); errors.Is(err, gorm.ErrRecordNotFound) {
				s.reportDangling(item)
			}
			return 0, 0, false
		}
		value, err := score.FromPoints(grade.Score, grade.MaxScore)
		if err != nil {
			s.logger.Warn().Uint("grade_id", grade.ID).Err(err).Msg("grade with invalid max score skipped")
			return 0, 0, false
		}
		return value, grade.Score, true

	case models.ConfigItemEvaluation:
		if _, err := s.evaluations.GetByID(ctx, item.ItemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.reportDangling(item)
			}
			return 0, 0, false
		}
		attempts, err := s.attempts.ListByEvaluationAndUser(ctx, item.ItemID, userID)
		if err != nil || len(attempts) == 0 {
			return 0, 0, false
		}
		best := BestAttempt(attempts)
		return score.FromPercentage(best.Percentage), best.Score, true

	default:
		s.reportDangling(item)
		return 0, 0, false
	}
}

func (s *gradebookService) reportDangling(item models.EvaluationConfigItem) {
	observability.DanglingItems().Inc()
	s.logger.Warn().Uint("item_id", item.ItemID).Str("kind", item.Kind).Msg("evaluation config entry no longer resolves, skipped")
}

func (s *gradebookService) invalidateLearnerView(ctx context.Context, sessionID, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, learnerViewCacheKey(sessionID, userID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate learner view cache")
	}
}

// BestAttempt selects the attempt with the highest percentage; ties are
// broken by earliest started_at so the result is stable under re-fetch.
func BestAttempt(attempts []models.EvaluationAttempt) models.EvaluationAttempt {
	best := attempts[0]
	for _, attempt := range attempts[1:] {
		if attempt.Percentage > best.Percentage {
			best = attempt
			continue
		}
		if attempt.Percentage == best.Percentage && attempt.StartedAt.Before(best.StartedAt) {
			best = attempt
		}
	}
	return best
}

func deriveStatus(completed, total int, average *float64, passingScore float64) (string, bool) {
	switch {
	case completed == 0:
		return models.OverallStatusNotStarted, false
	case completed == total && average != nil && *average >= passingScore:
		return models.OverallStatusPassing, true
	case completed == total:
		return models.OverallStatusFailing, false
	default:
		passing := average != nil && *average >= passingScore
		return models.OverallStatusInProgress, passing
	}
}
