package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// EvaluationRepository defines data operations for quiz-style evaluations
// and the per-session evaluation config.
type EvaluationRepository interface {
	ListBySession(ctx context.Context, sessionID uint) ([]models.Evaluation, error)
	GetByID(ctx context.Context, id uint) (models.Evaluation, error)
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetConfigBySession(ctx context.Context, sessionID uint) (models.EvaluationConfig, error)
	UpsertConfig(ctx context.Context, config *models.EvaluationConfig) error
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) ListBySession(ctx context.Context, sessionID uint) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	if err := r.db.WithContext(ctx).
		Preload("Questions").
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&evaluations).Error; err != nil {
		return nil, err
	}

	return evaluations, nil
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&evaluation, id).Error; err != nil {
		return models.Evaluation{}, err
	}

	return evaluation, nil
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) GetConfigBySession(ctx context.Context, sessionID uint) (models.EvaluationConfig, error) {
	var config models.EvaluationConfig
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&config).Error; err != nil {
		return models.EvaluationConfig{}, err
	}

	return config, nil
}

func (r *evaluationRepository) UpsertConfig(ctx context.Context, config *models.EvaluationConfig) error {
	var existing models.EvaluationConfig
	err := r.db.WithContext(ctx).
		Where("session_id = ?", config.SessionID).
		First(&existing).Error
	switch {
	case err == nil:
		config.ID = existing.ID
		config.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(config).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(config).Error
	default:
		return err
	}
}
