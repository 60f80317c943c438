package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation is a quiz-style gradable unit with auto-scorable questions and
// a maximum-attempts policy. PassingScore is expressed as a percentage.
type Evaluation struct {
	ID           uint                 `gorm:"primaryKey" json:"id"`
	SessionID    uint                 `gorm:"not null;index" json:"session_id"`
	Title        string               `gorm:"size:255;not null" json:"title"`
	PassingScore float64              `gorm:"not null" json:"passing_score"`
	MaxAttempts  int                  `gorm:"not null;default:1" json:"max_attempts"`
	Status       string               `gorm:"size:32;not null" json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	Questions    []EvaluationQuestion `json:"questions"`
}

// EvaluationQuestion belongs to one evaluation. Only choice and boolean
// questions carry a correct answer; open questions still count toward the
// total points but are never auto-scored.
type EvaluationQuestion struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	EvaluationID  uint           `gorm:"not null;index" json:"evaluation_id"`
	Type          string         `gorm:"size:32;not null" json:"type"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	Choices       datatypes.JSON `json:"choices"`
	CorrectAnswer string         `gorm:"size:255" json:"-"`
	Points        float64        `gorm:"not null" json:"points"`
	Position      int            `json:"position"`
}

// Question types.
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
	QuestionTypeOpenText       = "open_text"
)

// AutoScorable reports whether the question can be checked by exact match.
func (q EvaluationQuestion) AutoScorable() bool {
	return q.Type == QuestionTypeMultipleChoice || q.Type == QuestionTypeTrueFalse
}

// EvaluationAttempt is one scored attempt at an evaluation. Attempts are
// immutable once recorded.
type EvaluationAttempt struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	EvaluationID  uint              `gorm:"not null;index:idx_attempts_evaluation_user" json:"evaluation_id"`
	UserID        uint              `gorm:"not null;index:idx_attempts_evaluation_user" json:"user_id"`
	Answers       datatypes.JSONMap `gorm:"type:json" json:"answers"`
	Score         float64           `gorm:"not null" json:"score"`
	TotalPoints   float64           `gorm:"not null" json:"total_points"`
	Percentage    float64           `gorm:"not null" json:"percentage"`
	IsPassed      bool              `gorm:"not null" json:"is_passed"`
	AttemptNumber int               `gorm:"not null" json:"attempt_number"`
	StartedAt     time.Time         `gorm:"not null" json:"started_at"`
	SubmittedAt   time.Time         `gorm:"not null" json:"submitted_at"`
	CreatedAt     time.Time         `json:"created_at"`
}
