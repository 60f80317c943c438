package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// SummaryRepository persists the per-(session, user) gradebook read model.
type SummaryRepository interface {
	GetBySessionAndUser(ctx context.Context, sessionID, userID uint) (models.GradebookSummary, error)
	ListBySession(ctx context.Context, sessionID uint) ([]models.GradebookSummary, error)
	Upsert(ctx context.Context, summary *models.GradebookSummary) error
}

type summaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository instantiates the repository.
func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepository{db: db}
}

func (r *summaryRepository) GetBySessionAndUser(ctx context.Context, sessionID, userID uint) (models.GradebookSummary, error) {
	var summary models.GradebookSummary
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		First(&summary).Error; err != nil {
		return models.GradebookSummary{}, err
	}

	return summary, nil
}

func (r *summaryRepository) ListBySession(ctx context.Context, sessionID uint) ([]models.GradebookSummary, error) {
	var summaries []models.GradebookSummary
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("user_id ASC").
		Find(&summaries).Error; err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *summaryRepository) Upsert(ctx context.Context, summary *models.GradebookSummary) error {
	var existing models.GradebookSummary
	err := r.db.WithContext(ctx).
		Where("session_id = ?", summary.SessionID).
		Where("user_id = ?", summary.UserID).
		First(&existing).Error
	switch {
	case err == nil:
		summary.ID = existing.ID
		summary.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(summary).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(summary).Error
	default:
		return err
	}
}
