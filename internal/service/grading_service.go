package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/repository"
	"github.com/forma-lms/gradebook-api/internal/score"
)

// ErrGradeNotFound indicates a grade could not be found.
var ErrGradeNotFound = errors.New("grade not found")

// ErrScoreExceedsMax indicates a grading score surpasses the activity max.
var ErrScoreExceedsMax = errors.New("score exceeds activity max points")

// ErrSubmissionNotSubmitted indicates an attempt to grade a draft.
var ErrSubmissionNotSubmitted = errors.New("submission has not been submitted")

// GradingService records manual grades against submissions and controls
// grade publication.
type GradingService interface {
	Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor Actor) (dto.GradeResponse, error)
	PublishGrade(ctx context.Context, gradeID uint, actor Actor) (dto.GradeResponse, error)
	PublishAll(ctx context.Context, activityID uint, actor Actor) (dto.BulkPublishResponse, error)
}

type gradingService struct {
	grades      repository.GradeRepository
	submissions repository.SubmissionRepository
	activities  repository.ActivityRepository
	gradebook   SummaryRecomputer
	validator   *validator.Validate
	audit       AuditRecorder
	notifier    ChangeNotifier
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingService constructs the grading engine.
func NewGradingService(
	grades repository.GradeRepository,
	submissions repository.SubmissionRepository,
	activities repository.ActivityRepository,
	gradebook SummaryRecomputer,
	validate *validator.Validate,
	audit AuditRecorder,
	notifier ChangeNotifier,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		grades:      grades,
		submissions: submissions,
		activities:  activities,
		gradebook:   gradebook,
		validator:   validate,
		audit:       audit,
		notifier:    notifier,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/forma-lms/gradebook-api/internal/service/grading"),
		now:         time.Now,
	}
}

// Grade upserts the grade keyed by submission id; regrading with the same
// score yields the same stored row.
func (s *gradingService) Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor Actor) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.GradeResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	if submission.IsDraft() {
		span.SetStatus(codes.Error, "submission_not_submitted")
		return dto.GradeResponse{}, ErrSubmissionNotSubmitted
	}

	activity, err := s.activities.GetByID(ctx, submission.ActivityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "activity_not_found")
			return dto.GradeResponse{}, ErrActivityNotFound
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	if payload.Score > activity.MaxPoints {
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.GradeResponse{}, ErrScoreExceedsMax
	}

	percentage, err := score.Percentage(payload.Score, activity.MaxPoints)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	finalScore, err := score.FromPoints(payload.Score, activity.MaxPoints)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	grade := models.Grade{
		SubmissionID:  submission.ID,
		ActivityID:    activity.ID,
		SessionID:     submission.SessionID,
		UserID:        submission.UserID,
		Score:         payload.Score,
		MaxScore:      activity.MaxPoints,
		Percentage:    percentage,
		Passed:        percentage >= activity.PassingPercentage(),
		FinalScore:    finalScore,
		Feedback:      strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback)),
		GradedBy:      actor.ID,
		GradingMethod: models.GradingMethodManual,
	}

	submission.Status = models.SubmissionStatusGraded
	if err := s.grades.UpsertWithSubmission(ctx, &grade, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_upsert_failed")
		return dto.GradeResponse{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "submission.graded",
			EntityType: "grade",
			EntityID:   &grade.ID,
			Metadata: map[string]interface{}{
				"submission_id": submission.ID,
				"activity_id":   activity.ID,
				"user_id":       submission.UserID,
				"score":         payload.Score,
			},
		})
	}

	if _, err := s.gradebook.Recompute(ctx, submission.SessionID, submission.UserID); err != nil {
		s.logger.Warn().Err(err).Uint("session_id", submission.SessionID).Uint("user_id", submission.UserID).Msg("summary recompute after grading failed")
	}

	s.notifyChange(ctx, submission.SessionID, dto.ChangeEventUpdate)

	span.SetAttributes(
		attribute.Float64("grading.score", payload.Score),
		attribute.Bool("grading.passed", grade.Passed),
	)

	return dto.NewGradeResponse(grade), nil
}

// PublishGrade makes one grade visible to its learner. Publication is a
// one-way transition; republishing keeps the original published_at.
func (s *gradingService) PublishGrade(ctx context.Context, gradeID uint, actor Actor) (dto.GradeResponse, error) {
	grade, err := s.grades.GetByID(ctx, gradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, ErrGradeNotFound
		}
		return dto.GradeResponse{}, err
	}

	if grade.IsPublished {
		return dto.NewGradeResponse(grade), nil
	}

	published, err := s.grades.Publish(ctx, gradeID, s.now())
	if err != nil {
		return dto.GradeResponse{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "grade.published",
			EntityType: "grade",
			EntityID:   &published.ID,
			Metadata:   map[string]interface{}{"user_id": published.UserID},
		})
	}

	s.notifyChange(ctx, published.SessionID, dto.ChangeEventUpdate)

	return dto.NewGradeResponse(published), nil
}

// PublishAll publishes every currently-unpublished grade under an activity.
func (s *gradingService) PublishAll(ctx context.Context, activityID uint, actor Actor) (dto.BulkPublishResponse, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BulkPublishResponse{}, ErrActivityNotFound
		}
		return dto.BulkPublishResponse{}, err
	}

	published, err := s.grades.PublishAllForActivity(ctx, activityID, s.now())
	if err != nil {
		return dto.BulkPublishResponse{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "grades.bulk_published",
			EntityType: "activity",
			EntityID:   &activity.ID,
			Metadata:   map[string]interface{}{"published": published},
		})
	}

	if published > 0 {
		s.notifyChange(ctx, activity.SessionID, dto.ChangeEventUpdate)
	}

	s.logger.Info().Uint("activity_id", activityID).Int64("published", published).Msg("bulk grade publish completed")

	return dto.BulkPublishResponse{ActivityID: activityID, Published: published}, nil
}

func (s *gradingService) notifyChange(ctx context.Context, sessionID uint, event string) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishChange(ctx, dto.ChangeEvent{
		Scope: sessionID,
		Table: dto.ChangeTableGrades,
		Event: event,
	})
}
