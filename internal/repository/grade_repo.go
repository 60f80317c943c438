package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// GradeFilter narrows grade queries.
type GradeFilter struct {
	SessionID     *uint
	ActivityID    *uint
	UserID        *uint
	PublishedOnly bool
}

// GradeRepository defines data operations for grades.
type GradeRepository interface {
	List(ctx context.Context, filter GradeFilter) ([]models.Grade, error)
	GetByID(ctx context.Context, id uint) (models.Grade, error)
	GetBySubmissionID(ctx context.Context, submissionID uint) (models.Grade, error)
	// UpsertWithSubmission stores the grade keyed by submission id and flips
	// the submission to graded inside one transaction, so a store failure
	// leaves neither half applied.
	UpsertWithSubmission(ctx context.Context, grade *models.Grade, submission *models.Submission) error
	Publish(ctx context.Context, id uint, at time.Time) (models.Grade, error)
	PublishAllForActivity(ctx context.Context, activityID uint, at time.Time) (int64, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates the repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) List(ctx context.Context, filter GradeFilter) ([]models.Grade, error) {
	query := r.db.WithContext(ctx).Model(&models.Grade{})

	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}

	if filter.ActivityID != nil {
		query = query.Where("activity_id = ?", *filter.ActivityID)
	}

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}

	var grades []models.Grade
	if err := query.Order("created_at ASC").Find(&grades).Error; err != nil {
		return nil, err
	}

	return grades, nil
}

func (r *gradeRepository) GetByID(ctx context.Context, id uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).First(&grade, id).Error; err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) GetBySubmissionID(ctx context.Context, submissionID uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&grade).Error; err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) UpsertWithSubmission(ctx context.Context, grade *models.Grade, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Grade
		err := tx.Where("submission_id = ?", grade.SubmissionID).First(&existing).Error
		switch {
		case err == nil:
			grade.ID = existing.ID
			grade.IsPublished = existing.IsPublished
			grade.PublishedAt = existing.PublishedAt
			grade.CreatedAt = existing.CreatedAt
			if err := tx.Save(grade).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(grade).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Model(&models.Submission{}).
			Where("id = ?", submission.ID).
			Updates(map[string]interface{}{"status": submission.Status}).Error
	})
}

func (r *gradeRepository) Publish(ctx context.Context, id uint, at time.Time) (models.Grade, error) {
	// Filtered update keeps the first published_at; republishing is a no-op.
	if err := r.db.WithContext(ctx).Model(&models.Grade{}).
		Where("id = ?", id).
		Where("is_published = ?", false).
		Updates(map[string]interface{}{"is_published": true, "published_at": at}).Error; err != nil {
		return models.Grade{}, err
	}

	return r.GetByID(ctx, id)
}

func (r *gradeRepository) PublishAllForActivity(ctx context.Context, activityID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Grade{}).
		Where("activity_id = ?", activityID).
		Where("is_published = ?", false).
		Updates(map[string]interface{}{"is_published": true, "published_at": at})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
