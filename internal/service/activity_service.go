package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/repository"
)

// ErrActivityNotFound indicates an activity could not be found.
var ErrActivityNotFound = errors.New("activity not found")

// ErrPassingScoreOutOfRange indicates a passing score above max points.
var ErrPassingScoreOutOfRange = errors.New("passing score exceeds max points")

// ActivityService is the trainer CRUD surface for gradable activities.
type ActivityService interface {
	List(ctx context.Context, filter repository.ActivityFilter) ([]dto.ActivityResponse, error)
	Get(ctx context.Context, id uint) (dto.ActivityResponse, error)
	Create(ctx context.Context, payload dto.ActivityCreateRequest, actor Actor) (dto.ActivityResponse, error)
	Update(ctx context.Context, id uint, payload dto.ActivityUpdateRequest, actor Actor) (dto.ActivityResponse, error)
	Publish(ctx context.Context, id uint, actor Actor) (dto.ActivityResponse, error)
	Delete(ctx context.Context, id uint, actor Actor) error
}

type activityService struct {
	activities repository.ActivityRepository
	validator  *validator.Validate
	notifier   ChangeNotifier
	logger     zerolog.Logger
	now        func() time.Time
}

// NewActivityService constructs an ActivityService instance.
func NewActivityService(repo repository.ActivityRepository, validate *validator.Validate, notifier ChangeNotifier, logger zerolog.Logger) ActivityService {
	return &activityService{
		activities: repo,
		validator:  validate,
		notifier:   notifier,
		logger:     logger.With().Str("component", "activity_service").Logger(),
		now:        time.Now,
	}
}

func (s *activityService) List(ctx context.Context, filter repository.ActivityFilter) ([]dto.ActivityResponse, error) {
	activities, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewActivityResponseSlice(activities), nil
}

func (s *activityService) Get(ctx context.Context, id uint) (dto.ActivityResponse, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityResponse{}, ErrActivityNotFound
		}
		return dto.ActivityResponse{}, err
	}

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Create(ctx context.Context, payload dto.ActivityCreateRequest, actor Actor) (dto.ActivityResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ActivityResponse{}, err
	}

	if payload.PassingScore > payload.MaxPoints {
		return dto.ActivityResponse{}, ErrPassingScoreOutOfRange
	}

	weight := 1.0
	if payload.Weight != nil {
		weight = *payload.Weight
	}

	activity := models.Activity{
		SessionID:     payload.SessionID,
		Title:         payload.Title,
		Type:          payload.Type,
		MaxPoints:     payload.MaxPoints,
		Weight:        weight,
		PassingScore:  payload.PassingScore,
		Status:        models.ActivityStatusDraft,
		Position:      payload.Position,
		DueDate:       payload.DueDate,
		AvailableFrom: payload.AvailableFrom,
	}

	if err := s.activities.Create(ctx, &activity); err != nil {
		return dto.ActivityResponse{}, err
	}

	s.logger.Info().Uint("activity_id", activity.ID).Uint("actor_id", actor.ID).Msg("activity created")
	s.notifyChange(ctx, activity.SessionID, dto.ChangeEventInsert)

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Update(ctx context.Context, id uint, payload dto.ActivityUpdateRequest, actor Actor) (dto.ActivityResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ActivityResponse{}, err
	}

	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityResponse{}, ErrActivityNotFound
		}
		return dto.ActivityResponse{}, err
	}

	if payload.Title != nil {
		activity.Title = *payload.Title
	}
	if payload.Type != nil {
		activity.Type = *payload.Type
	}
	if payload.MaxPoints != nil {
		activity.MaxPoints = *payload.MaxPoints
	}
	if payload.Weight != nil {
		activity.Weight = *payload.Weight
	}
	if payload.PassingScore != nil {
		activity.PassingScore = *payload.PassingScore
	}
	if payload.Position != nil {
		activity.Position = *payload.Position
	}
	if payload.DueDate != nil {
		activity.DueDate = payload.DueDate
	}
	if payload.AvailableFrom != nil {
		activity.AvailableFrom = payload.AvailableFrom
	}

	if activity.MaxPoints <= 0 {
		return dto.ActivityResponse{}, fmt.Errorf("max points must be greater than zero")
	}
	if activity.PassingScore > activity.MaxPoints {
		return dto.ActivityResponse{}, ErrPassingScoreOutOfRange
	}

	if err := s.activities.Update(ctx, &activity); err != nil {
		return dto.ActivityResponse{}, err
	}

	s.logger.Info().Uint("activity_id", activity.ID).Uint("actor_id", actor.ID).Msg("activity updated")
	s.notifyChange(ctx, activity.SessionID, dto.ChangeEventUpdate)

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Publish(ctx context.Context, id uint, actor Actor) (dto.ActivityResponse, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityResponse{}, ErrActivityNotFound
		}
		return dto.ActivityResponse{}, err
	}

	if activity.IsPublished() {
		return dto.NewActivityResponse(activity), nil
	}

	activity.Status = models.ActivityStatusPublished
	if err := s.activities.Update(ctx, &activity); err != nil {
		return dto.ActivityResponse{}, err
	}

	s.logger.Info().Uint("activity_id", activity.ID).Uint("actor_id", actor.ID).Msg("activity published")
	s.notifyChange(ctx, activity.SessionID, dto.ChangeEventUpdate)

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Delete(ctx context.Context, id uint, actor Actor) error {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrActivityNotFound
		}
		return err
	}

	// Deletion is not blocked by existing submissions; consistency then
	// depends on the store's cascade rules. Surface it for operators.
	count, err := s.activities.CountSubmissions(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Warn().Uint("activity_id", id).Int64("submissions", count).Msg("deleting activity that still has submissions")
	}

	if err := s.activities.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Uint("activity_id", id).Uint("actor_id", actor.ID).Msg("activity deleted")
	s.notifyChange(ctx, activity.SessionID, dto.ChangeEventDelete)

	return nil
}

func (s *activityService) notifyChange(ctx context.Context, sessionID uint, event string) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishChange(ctx, dto.ChangeEvent{
		Scope: sessionID,
		Table: dto.ChangeTableActivities,
		Event: event,
	})
}
