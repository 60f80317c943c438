package dto

import (
	"encoding/json"
	"time"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// AttemptSubmitRequest carries the learner's answers keyed by question id.
type AttemptSubmitRequest struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"`
}

// AttemptResponse serializes one scored evaluation attempt.
type AttemptResponse struct {
	ID            uint      `json:"id"`
	EvaluationID  uint      `json:"evaluation_id"`
	UserID        uint      `json:"user_id"`
	Score         float64   `json:"score"`
	TotalPoints   float64   `json:"total_points"`
	Percentage    float64   `json:"percentage"`
	IsPassed      bool      `json:"is_passed"`
	AttemptNumber int       `json:"attempt_number"`
	StartedAt     time.Time `json:"started_at"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// EvaluationResponse serializes an evaluation without leaking correct answers.
type EvaluationResponse struct {
	ID           uint               `json:"id"`
	SessionID    uint               `json:"session_id"`
	Title        string             `json:"title"`
	PassingScore float64            `json:"passing_score"`
	MaxAttempts  int                `json:"max_attempts"`
	Questions    []QuestionResponse `json:"questions"`
}

// QuestionResponse serializes one question for learners.
type QuestionResponse struct {
	ID      uint     `json:"id"`
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
	Points  float64  `json:"points"`
}

// NewAttemptResponse converts a model into a DTO.
func NewAttemptResponse(model models.EvaluationAttempt) AttemptResponse {
	return AttemptResponse{
		ID:            model.ID,
		EvaluationID:  model.EvaluationID,
		UserID:        model.UserID,
		Score:         model.Score,
		TotalPoints:   model.TotalPoints,
		Percentage:    model.Percentage,
		IsPassed:      model.IsPassed,
		AttemptNumber: model.AttemptNumber,
		StartedAt:     model.StartedAt,
		SubmittedAt:   model.SubmittedAt,
	}
}

// NewAttemptResponseSlice converts attempt models into DTOs.
func NewAttemptResponseSlice(attempts []models.EvaluationAttempt) []AttemptResponse {
	responses := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, NewAttemptResponse(attempt))
	}

	return responses
}

// NewEvaluationResponse converts a model into a DTO.
func NewEvaluationResponse(model models.Evaluation) EvaluationResponse {
	questions := make([]QuestionResponse, 0, len(model.Questions))
	for _, question := range model.Questions {
		var choices []string
		if len(question.Choices) > 0 {
			_ = json.Unmarshal(question.Choices, &choices)
		}
		questions = append(questions, QuestionResponse{
			ID:      question.ID,
			Type:    question.Type,
			Prompt:  question.Prompt,
			Choices: choices,
			Points:  question.Points,
		})
	}

	return EvaluationResponse{
		ID:           model.ID,
		SessionID:    model.SessionID,
		Title:        model.Title,
		PassingScore: model.PassingScore,
		MaxAttempts:  model.MaxAttempts,
		Questions:    questions,
	}
}
