package dto

import (
	"time"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// GradeSubmissionRequest is the trainer payload for grading one submission.
type GradeSubmissionRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback" validate:"omitempty,max=10000"`
}

// GradeResponse serializes a stored grade.
type GradeResponse struct {
	ID            uint       `json:"id"`
	SubmissionID  uint       `json:"submission_id"`
	ActivityID    uint       `json:"activity_id"`
	SessionID     uint       `json:"session_id"`
	UserID        uint       `json:"user_id"`
	Score         float64    `json:"score"`
	MaxScore      float64    `json:"max_score"`
	Percentage    float64    `json:"percentage"`
	Passed        bool       `json:"passed"`
	FinalScore    float64    `json:"final_score"`
	Feedback      string     `json:"feedback"`
	IsPublished   bool       `json:"is_published"`
	PublishedAt   *time.Time `json:"published_at"`
	GradedBy      uint       `json:"graded_by"`
	GradingMethod string     `json:"grading_method"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BulkPublishResponse reports how many grades a bulk publish touched.
type BulkPublishResponse struct {
	ActivityID uint  `json:"activity_id"`
	Published  int64 `json:"published"`
}

// NewGradeResponse converts a model into a DTO.
func NewGradeResponse(model models.Grade) GradeResponse {
	return GradeResponse{
		ID:            model.ID,
		SubmissionID:  model.SubmissionID,
		ActivityID:    model.ActivityID,
		SessionID:     model.SessionID,
		UserID:        model.UserID,
		Score:         model.Score,
		MaxScore:      model.MaxScore,
		Percentage:    model.Percentage,
		Passed:        model.Passed,
		FinalScore:    model.FinalScore,
		Feedback:      model.Feedback,
		IsPublished:   model.IsPublished,
		PublishedAt:   model.PublishedAt,
		GradedBy:      model.GradedBy,
		GradingMethod: model.GradingMethod,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewGradeResponseSlice converts grade models into DTOs.
func NewGradeResponseSlice(grades []models.Grade) []GradeResponse {
	responses := make([]GradeResponse, 0, len(grades))
	for _, grade := range grades {
		responses = append(responses, NewGradeResponse(grade))
	}

	return responses
}
