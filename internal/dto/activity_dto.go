package dto

import (
	"time"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// ActivityCreateRequest describes the payload for creating a new activity.
type ActivityCreateRequest struct {
	SessionID     uint       `json:"session_id" validate:"required,gt=0"`
	Title         string     `json:"title" validate:"required,min=3"`
	Type          string     `json:"type" validate:"required,oneof=quiz tp exercise"`
	MaxPoints     float64    `json:"max_points" validate:"required,gt=0"`
	Weight        *float64   `json:"weight" validate:"omitempty,gte=0"`
	PassingScore  float64    `json:"passing_score" validate:"gte=0"`
	Position      int        `json:"position" validate:"gte=0"`
	DueDate       *time.Time `json:"due_date"`
	AvailableFrom *time.Time `json:"available_from"`
}

// ActivityUpdateRequest describes the payload for updating an activity.
type ActivityUpdateRequest struct {
	Title         *string    `json:"title" validate:"omitempty,min=3"`
	Type          *string    `json:"type" validate:"omitempty,oneof=quiz tp exercise"`
	MaxPoints     *float64   `json:"max_points" validate:"omitempty,gt=0"`
	Weight        *float64   `json:"weight" validate:"omitempty,gte=0"`
	PassingScore  *float64   `json:"passing_score" validate:"omitempty,gte=0"`
	Position      *int       `json:"position" validate:"omitempty,gte=0"`
	DueDate       *time.Time `json:"due_date"`
	AvailableFrom *time.Time `json:"available_from"`
}

// ActivityResponse is the serialized representation returned to API clients.
type ActivityResponse struct {
	ID            uint       `json:"id"`
	SessionID     uint       `json:"session_id"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	MaxPoints     float64    `json:"max_points"`
	Weight        float64    `json:"weight"`
	PassingScore  float64    `json:"passing_score"`
	Status        string     `json:"status"`
	Position      int        `json:"position"`
	DueDate       *time.Time `json:"due_date"`
	AvailableFrom *time.Time `json:"available_from"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewActivityResponse converts a model into a DTO.
func NewActivityResponse(model models.Activity) ActivityResponse {
	return ActivityResponse{
		ID:            model.ID,
		SessionID:     model.SessionID,
		Title:         model.Title,
		Type:          model.Type,
		MaxPoints:     model.MaxPoints,
		Weight:        model.Weight,
		PassingScore:  model.PassingScore,
		Status:        model.Status,
		Position:      model.Position,
		DueDate:       model.DueDate,
		AvailableFrom: model.AvailableFrom,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewActivityResponseSlice converts a slice of models into DTOs.
func NewActivityResponseSlice(activities []models.Activity) []ActivityResponse {
	responses := make([]ActivityResponse, 0, len(activities))
	for _, activity := range activities {
		responses = append(responses, NewActivityResponse(activity))
	}

	return responses
}
