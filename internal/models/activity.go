package models

import "time"

// Activity represents a gradable unit owned by a training session.
type Activity struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SessionID     uint       `gorm:"not null;index" json:"session_id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Type          string     `gorm:"size:32;not null" json:"type"`
	MaxPoints     float64    `gorm:"not null" json:"max_points"`
	Weight        float64    `gorm:"not null;default:1" json:"weight"`
	PassingScore  float64    `gorm:"not null" json:"passing_score"`
	Status        string     `gorm:"size:32;not null" json:"status"`
	Position      int        `json:"position"`
	DueDate       *time.Time `json:"due_date"`
	AvailableFrom *time.Time `json:"available_from"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Submissions   []Submission
}

// Activity types supported by the gradebook.
const (
	ActivityTypeQuiz     = "quiz"
	ActivityTypeTP       = "tp"
	ActivityTypeExercise = "exercise"
)

const (
	// ActivityStatusDraft keeps the activity hidden from learners.
	ActivityStatusDraft = "draft"
	// ActivityStatusPublished makes the activity visible and submittable.
	ActivityStatusPublished = "published"
)

// IsPublished reports whether learners may see the activity.
func (a Activity) IsPublished() bool {
	return a.Status == ActivityStatusPublished
}

// IsAvailable reports whether the activity is published and inside its
// publication window at the reference time.
func (a Activity) IsAvailable(reference time.Time) bool {
	if !a.IsPublished() {
		return false
	}
	if a.AvailableFrom != nil && reference.Before(*a.AvailableFrom) {
		return false
	}
	return true
}

// IsPastDue returns true when the activity deadline has already passed.
func (a Activity) IsPastDue(reference time.Time) bool {
	return a.DueDate != nil && reference.After(*a.DueDate)
}

// PassingPercentage converts the point-based passing score onto a 0-100 scale.
func (a Activity) PassingPercentage() float64 {
	if a.MaxPoints <= 0 {
		return 0
	}
	return a.PassingScore / a.MaxPoints * 100
}
