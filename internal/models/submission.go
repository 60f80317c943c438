package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is a learner's working artifact against one activity. At most
// one submission exists per (activity, user) pair.
type Submission struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ActivityID  uint              `gorm:"not null;uniqueIndex:idx_submissions_activity_user" json:"activity_id"`
	UserID      uint              `gorm:"not null;uniqueIndex:idx_submissions_activity_user" json:"user_id"`
	SessionID   uint              `gorm:"not null;index" json:"session_id"`
	Status      string            `gorm:"size:32;not null" json:"status"`
	StartedAt   time.Time         `gorm:"not null" json:"started_at"`
	SubmittedAt *time.Time        `json:"submitted_at"`
	LastSavedAt *time.Time        `json:"last_saved_at"`
	Payload     datatypes.JSONMap `gorm:"type:json" json:"payload"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Activity    Activity          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"activity"`
}

// Submission lifecycle: draft -> submitted -> graded, no backward path.
const (
	SubmissionStatusDraft     = "draft"
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusGraded    = "graded"
)

// IsDraft reports whether the learner may still edit the submission.
func (s Submission) IsDraft() bool {
	return s.Status == SubmissionStatusDraft
}

// IsGraded reports whether a grade has been attached.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}
