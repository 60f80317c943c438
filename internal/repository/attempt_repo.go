package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// AttemptRepository defines data operations for evaluation attempts. The
// attempts table is append-only.
type AttemptRepository interface {
	ListByEvaluationAndUser(ctx context.Context, evaluationID, userID uint) ([]models.EvaluationAttempt, error)
	CountByEvaluationAndUser(ctx context.Context, evaluationID, userID uint) (int64, error)
	Create(ctx context.Context, attempt *models.EvaluationAttempt) error
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates the repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) ListByEvaluationAndUser(ctx context.Context, evaluationID, userID uint) ([]models.EvaluationAttempt, error) {
	var attempts []models.EvaluationAttempt
	if err := r.db.WithContext(ctx).
		Where("evaluation_id = ?", evaluationID).
		Where("user_id = ?", userID).
		Order("attempt_number ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *attemptRepository) CountByEvaluationAndUser(ctx context.Context, evaluationID, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EvaluationAttempt{}).
		Where("evaluation_id = ?", evaluationID).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.EvaluationAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}
