package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/repository"
)

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionNotDraft indicates a write against a submission that already
// left the draft state.
var ErrSubmissionNotDraft = errors.New("submission is no longer a draft")

// ErrAlreadySubmitted indicates a second submit on the same submission.
var ErrAlreadySubmitted = errors.New("submission already submitted")

// ErrActivityNotAvailable indicates the activity is unpublished or outside
// its publication window.
var ErrActivityNotAvailable = errors.New("activity is not available")

// ErrNotOwner indicates a learner touching someone else's submission.
var ErrNotOwner = errors.New("submission belongs to another user")

// SubmissionService manages the learner-attempt lifecycle per activity.
type SubmissionService interface {
	Start(ctx context.Context, activityID uint, actor Actor) (dto.SubmissionResponse, error)
	SaveDraft(ctx context.Context, submissionID uint, payload dto.SubmissionDraftRequest, actor Actor) (dto.SubmissionResponse, error)
	Submit(ctx context.Context, submissionID uint, actor Actor) (dto.SubmissionResponse, error)
	GetMine(ctx context.Context, activityID uint, actor Actor) (dto.SubmissionResponse, error)
	List(ctx context.Context, filter repository.SubmissionFilter) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	activities  repository.ActivityRepository
	validator   *validator.Validate
	notifier    ChangeNotifier
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(subRepo repository.SubmissionRepository, activityRepo repository.ActivityRepository, validate *validator.Validate, notifier ChangeNotifier, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: subRepo,
		activities:  activityRepo,
		validator:   validate,
		notifier:    notifier,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

// Start returns the learner's existing submission for the activity or
// creates a fresh draft, guaranteeing at most one per (activity, user).
func (s *submissionService) Start(ctx context.Context, activityID uint, actor Actor) (dto.SubmissionResponse, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrActivityNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !activity.IsAvailable(s.now()) {
		return dto.SubmissionResponse{}, ErrActivityNotAvailable
	}

	existing, err := s.submissions.GetByActivityAndUser(ctx, activityID, actor.ID)
	if err == nil {
		return dto.NewSubmissionResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		ActivityID: activityID,
		UserID:     actor.ID,
		SessionID:  activity.SessionID,
		Status:     models.SubmissionStatusDraft,
		StartedAt:  s.now(),
		Payload:    datatypes.JSONMap{},
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", created.ID).Uint("activity_id", activityID).Uint("user_id", actor.ID).Msg("submission started")
	s.notifyChange(ctx, created.SessionID, dto.ChangeEventInsert)

	return dto.NewSubmissionResponse(created), nil
}

// SaveDraft merges the partial payload into the draft. Concurrent saves are
// last-write-wins; the engine keeps no revision counter.
func (s *submissionService) SaveDraft(ctx context.Context, submissionID uint, payload dto.SubmissionDraftRequest, actor Actor) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.getOwned(ctx, submissionID, actor)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if !submission.IsDraft() {
		return dto.SubmissionResponse{}, ErrSubmissionNotDraft
	}

	if submission.Payload == nil {
		submission.Payload = datatypes.JSONMap{}
	}
	for key, value := range payload.Payload {
		submission.Payload[key] = value
	}

	savedAt := s.now()
	submission.LastSavedAt = &savedAt

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if s.notifier != nil {
		s.notifier.PublishProgress(dto.ProgressPing{
			SessionID:  submission.SessionID,
			UserID:     submission.UserID,
			ActivityID: submission.ActivityID,
			At:         savedAt,
		})
	}

	return dto.NewSubmissionResponse(submission), nil
}

// Submit transitions draft -> submitted exactly once.
func (s *submissionService) Submit(ctx context.Context, submissionID uint, actor Actor) (dto.SubmissionResponse, error) {
	submission, err := s.getOwned(ctx, submissionID, actor)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if !submission.IsDraft() {
		return dto.SubmissionResponse{}, ErrAlreadySubmitted
	}

	submittedAt := s.now()
	submission.Status = models.SubmissionStatusSubmitted
	submission.SubmittedAt = &submittedAt

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", submission.ID).Uint("user_id", actor.ID).Msg("submission submitted")
	s.notifyChange(ctx, submission.SessionID, dto.ChangeEventUpdate)

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) GetMine(ctx context.Context, activityID uint, actor Actor) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByActivityAndUser(ctx, activityID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context, filter repository.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) getOwned(ctx context.Context, submissionID uint, actor Actor) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if submission.UserID != actor.ID && !actor.IsTrainer() {
		return models.Submission{}, ErrNotOwner
	}

	return submission, nil
}

func (s *submissionService) notifyChange(ctx context.Context, sessionID uint, event string) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishChange(ctx, dto.ChangeEvent{
		Scope: sessionID,
		Table: dto.ChangeTableSubmissions,
		Event: event,
	})
}
