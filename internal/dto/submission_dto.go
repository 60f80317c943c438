package dto

import (
	"time"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// SubmissionDraftRequest carries a partial payload saved while the
// submission is still a draft. Keys not present are left untouched.
type SubmissionDraftRequest struct {
	Payload map[string]interface{} `json:"payload" validate:"required,min=1"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID          uint                   `json:"id"`
	ActivityID  uint                   `json:"activity_id"`
	SessionID   uint                   `json:"session_id"`
	UserID      uint                   `json:"user_id"`
	Status      string                 `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	SubmittedAt *time.Time             `json:"submitted_at"`
	LastSavedAt *time.Time             `json:"last_saved_at"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Activity    ActivityLite           `json:"activity"`
}

// ActivityLite summarizes an activity in submission responses.
type ActivityLite struct {
	ID        uint       `json:"id"`
	Title     string     `json:"title"`
	Type      string     `json:"type"`
	MaxPoints float64    `json:"max_points"`
	DueDate   *time.Time `json:"due_date"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:          model.ID,
		ActivityID:  model.ActivityID,
		SessionID:   model.SessionID,
		UserID:      model.UserID,
		Status:      model.Status,
		StartedAt:   model.StartedAt,
		SubmittedAt: model.SubmittedAt,
		LastSavedAt: model.LastSavedAt,
		Payload:     model.Payload,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if model.Activity.ID != 0 {
		response.Activity = ActivityLite{
			ID:        model.Activity.ID,
			Title:     model.Activity.Title,
			Type:      model.Activity.Type,
			MaxPoints: model.Activity.MaxPoints,
			DueDate:   model.Activity.DueDate,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
