package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/repository"
)

// ProjectionService produces the trainer roster and the learner view.
// Projections are assembled from the repositories on every request; only the
// learner view is cached, since it is the hot path during a live session.
type ProjectionService interface {
	TrainerRoster(ctx context.Context, sessionID uint) (dto.TrainerRosterResponse, error)
	LearnerView(ctx context.Context, sessionID uint, userID uint) (dto.LearnerViewResponse, error)
}

type projectionService struct {
	activities  repository.ActivityRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	summaries   repository.SummaryRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProjectionService builds the view projection assembler.
func NewProjectionService(
	activities repository.ActivityRepository,
	submissions repository.SubmissionRepository,
	grades repository.GradeRepository,
	summaries repository.SummaryRepository,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) ProjectionService {
	return &projectionService{
		activities:  activities,
		submissions: submissions,
		grades:      grades,
		summaries:   summaries,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "projection_service").Logger(),
		now:         time.Now,
	}
}

func learnerViewCacheKey(sessionID, userID uint) string {
	return fmt.Sprintf("gradebook:learner:%d:%d", sessionID, userID)
}

// TrainerRoster exposes every submission and every grade of the session,
// published or not. Never cached: trainers expect to see their own writes
// immediately.
func (s *projectionService) TrainerRoster(ctx context.Context, sessionID uint) (dto.TrainerRosterResponse, error) {
	activities, err := s.activities.List(ctx, repository.ActivityFilter{SessionID: &sessionID})
	if err != nil {
		return dto.TrainerRosterResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{SessionID: &sessionID})
	if err != nil {
		return dto.TrainerRosterResponse{}, err
	}

	grades, err := s.grades.List(ctx, repository.GradeFilter{SessionID: &sessionID})
	if err != nil {
		return dto.TrainerRosterResponse{}, err
	}

	summaries, err := s.summaries.ListBySession(ctx, sessionID)
	if err != nil {
		return dto.TrainerRosterResponse{}, err
	}

	submissionsByActivity := make(map[uint][]dto.SubmissionResponse)
	for _, submission := range submissions {
		submissionsByActivity[submission.ActivityID] = append(submissionsByActivity[submission.ActivityID], dto.NewSubmissionResponse(submission))
	}

	gradesBySubmission := make(map[uint]dto.GradeResponse, len(grades))
	for _, grade := range grades {
		gradesBySubmission[grade.SubmissionID] = dto.NewGradeResponse(grade)
	}

	summariesByUser := make(map[uint]dto.SummaryResponse, len(summaries))
	for _, summary := range summaries {
		summariesByUser[summary.UserID] = dto.NewSummaryResponse(summary)
	}

	return dto.TrainerRosterResponse{
		SessionID:             sessionID,
		Activities:            dto.NewActivityResponseSlice(activities),
		SubmissionsByActivity: submissionsByActivity,
		GradesBySubmission:    gradesBySubmission,
		SummariesByUser:       summariesByUser,
		GeneratedAt:           s.now(),
	}, nil
}

// LearnerView restricts the projection to what the learner may see: published
// activities, their own submissions, published grades only, and their summary.
func (s *projectionService) LearnerView(ctx context.Context, sessionID uint, userID uint) (dto.LearnerViewResponse, error) {
	cacheKey := learnerViewCacheKey(sessionID, userID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.LearnerViewResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read learner view cache")
		}
	}

	response, err := s.buildLearnerView(ctx, sessionID, userID)
	if err != nil {
		return dto.LearnerViewResponse{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store learner view cache")
			}
		}
	}

	return response, nil
}

func (s *projectionService) buildLearnerView(ctx context.Context, sessionID, userID uint) (dto.LearnerViewResponse, error) {
	published := models.ActivityStatusPublished
	activities, err := s.activities.List(ctx, repository.ActivityFilter{SessionID: &sessionID, Status: &published})
	if err != nil {
		return dto.LearnerViewResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{SessionID: &sessionID, UserID: &userID})
	if err != nil {
		return dto.LearnerViewResponse{}, err
	}

	grades, err := s.grades.List(ctx, repository.GradeFilter{SessionID: &sessionID, UserID: &userID, PublishedOnly: true})
	if err != nil {
		return dto.LearnerViewResponse{}, err
	}

	gradesBySubmission := make(map[uint]dto.GradeResponse, len(grades))
	for _, grade := range grades {
		gradesBySubmission[grade.SubmissionID] = dto.NewGradeResponse(grade)
	}

	response := dto.LearnerViewResponse{
		SessionID:   sessionID,
		UserID:      userID,
		Activities:  dto.NewActivityResponseSlice(activities),
		Submissions: dto.NewSubmissionResponseSlice(submissions),
		Grades:      gradesBySubmission,
		GeneratedAt: s.now(),
	}

	summary, err := s.summaries.GetBySessionAndUser(ctx, sessionID, userID)
	if err == nil {
		summaryResponse := dto.NewSummaryResponse(summary)
		response.Summary = &summaryResponse
	}

	return response, nil
}
