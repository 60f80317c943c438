package dto

import (
	"time"

	"github.com/forma-lms/gradebook-api/internal/models"
)

// SummaryResponse serializes the per-(session, user) gradebook read model.
type SummaryResponse struct {
	SessionID           uint      `json:"session_id"`
	UserID              uint      `json:"user_id"`
	TotalActivities     int       `json:"total_activities"`
	CompletedActivities int       `json:"completed_activities"`
	PendingActivities   int       `json:"pending_activities"`
	TotalPointsEarned   float64   `json:"total_points_earned"`
	WeightedAverage     *float64  `json:"weighted_average"`
	OverallStatus       string    `json:"overall_status"`
	IsPassing           bool      `json:"is_passing"`
	ComputedAt          time.Time `json:"computed_at"`
}

// ConfigItemRequest references one gradable item in a session's weighting
// config. A nil weight defaults to 1; an explicit 0 excludes the item from
// the average while still counting completion.
type ConfigItemRequest struct {
	ItemID uint     `json:"item_id" validate:"required,gt=0"`
	Kind   string   `json:"kind" validate:"required,oneof=activity evaluation"`
	Weight *float64 `json:"weight" validate:"omitempty,gte=0"`
}

// ConfigUpdateRequest replaces the session's weighting config wholesale.
// PassingScore is on the 0-20 reporting scale.
type ConfigUpdateRequest struct {
	PassingScore *float64            `json:"passing_score" validate:"omitempty,gte=0,lte=20"`
	Items        []ConfigItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ConfigResponse serializes the stored weighting config.
type ConfigResponse struct {
	SessionID    uint                          `json:"session_id"`
	PassingScore float64                       `json:"passing_score"`
	Items        []models.EvaluationConfigItem `json:"items"`
	UpdatedAt    time.Time                     `json:"updated_at"`
}

// NewConfigResponse converts a model into a DTO.
func NewConfigResponse(model models.EvaluationConfig) (ConfigResponse, error) {
	items, err := model.DecodeItems()
	if err != nil {
		return ConfigResponse{}, err
	}

	return ConfigResponse{
		SessionID:    model.SessionID,
		PassingScore: model.PassingScore,
		Items:        items,
		UpdatedAt:    model.UpdatedAt,
	}, nil
}

// TrainerRosterResponse is the trainer-facing projection for one session.
type TrainerRosterResponse struct {
	SessionID             uint                          `json:"session_id"`
	Activities            []ActivityResponse            `json:"activities"`
	SubmissionsByActivity map[uint][]SubmissionResponse `json:"submissions_by_activity"`
	GradesBySubmission    map[uint]GradeResponse        `json:"grades_by_submission"`
	SummariesByUser       map[uint]SummaryResponse      `json:"summaries_by_user"`
	GeneratedAt           time.Time                     `json:"generated_at"`
}

// LearnerViewResponse is the learner-facing projection: published activities,
// the learner's own submissions, published grades only, and their summary.
type LearnerViewResponse struct {
	SessionID   uint                   `json:"session_id"`
	UserID      uint                   `json:"user_id"`
	Activities  []ActivityResponse     `json:"activities"`
	Submissions []SubmissionResponse   `json:"submissions"`
	Grades      map[uint]GradeResponse `json:"grades_by_submission"`
	Summary     *SummaryResponse       `json:"summary"`
	GeneratedAt time.Time              `json:"generated_at"`
	CacheHit    bool                   `json:"cache_hit"`
}

// NewSummaryResponse converts a model into a DTO.
func NewSummaryResponse(model models.GradebookSummary) SummaryResponse {
	return SummaryResponse{
		SessionID:           model.SessionID,
		UserID:              model.UserID,
		TotalActivities:     model.TotalActivities,
		CompletedActivities: model.CompletedActivities,
		PendingActivities:   model.PendingActivities,
		TotalPointsEarned:   model.TotalPointsEarned,
		WeightedAverage:     model.WeightedAverage,
		OverallStatus:       model.OverallStatus,
		IsPassing:           model.IsPassing,
		ComputedAt:          model.ComputedAt,
	}
}
