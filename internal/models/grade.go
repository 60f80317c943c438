package models

import "time"

// Grade is the scored outcome attached to exactly one submission. Regrading
// upserts on SubmissionID rather than creating a second row.
type Grade struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SubmissionID  uint       `gorm:"not null;uniqueIndex" json:"submission_id"`
	ActivityID    uint       `gorm:"not null;index" json:"activity_id"`
	SessionID     uint       `gorm:"not null;index" json:"session_id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	Score         float64    `gorm:"not null" json:"score"`
	MaxScore      float64    `gorm:"not null" json:"max_score"`
	Percentage    float64    `gorm:"not null" json:"percentage"`
	Passed        bool       `gorm:"not null" json:"passed"`
	FinalScore    float64    `gorm:"not null" json:"final_score"`
	Feedback      string     `gorm:"type:text" json:"feedback"`
	IsPublished   bool       `gorm:"not null;default:false" json:"is_published"`
	PublishedAt   *time.Time `json:"published_at"`
	GradedBy      uint       `gorm:"not null" json:"graded_by"`
	GradingMethod string     `gorm:"size:16;not null" json:"grading_method"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

const (
	// GradingMethodManual marks trainer-assigned grades.
	GradingMethodManual = "manual"
	// GradingMethodAuto marks grades produced by auto-scoring.
	GradingMethodAuto = "auto"
)
