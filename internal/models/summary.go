package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// GradebookSummary is the per-(session, user) read model rebuilt by the
// aggregation engine. It is never hand-edited.
type GradebookSummary struct {
	ID                  uint      `gorm:"primaryKey" json:"-"`
	SessionID           uint      `gorm:"not null;uniqueIndex:idx_summaries_session_user" json:"session_id"`
	UserID              uint      `gorm:"not null;uniqueIndex:idx_summaries_session_user" json:"user_id"`
	TotalActivities     int       `gorm:"not null" json:"total_activities"`
	CompletedActivities int       `gorm:"not null" json:"completed_activities"`
	PendingActivities   int       `gorm:"not null" json:"pending_activities"`
	TotalPointsEarned   float64   `gorm:"not null" json:"total_points_earned"`
	WeightedAverage     *float64  `json:"weighted_average"`
	OverallStatus       string    `gorm:"size:32;not null" json:"overall_status"`
	IsPassing           bool      `gorm:"not null" json:"is_passing"`
	ComputedAt          time.Time `gorm:"not null" json:"computed_at"`
	CreatedAt           time.Time `json:"-"`
	UpdatedAt           time.Time `json:"-"`
}

// Summary statuses derived by the aggregation engine.
const (
	OverallStatusNotStarted = "not_started"
	OverallStatusInProgress = "in_progress"
	OverallStatusPassing    = "passing"
	OverallStatusFailing    = "failing"
)

// EvaluationConfig lists the gradable items that feed a session's weighted
// average. PassingScore is on the canonical 0-20 scale.
type EvaluationConfig struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SessionID    uint           `gorm:"not null;uniqueIndex" json:"session_id"`
	PassingScore float64        `gorm:"not null;default:10" json:"passing_score"`
	Items        datatypes.JSON `json:"items"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// EvaluationConfigItem references either an activity or an evaluation.
type EvaluationConfigItem struct {
	ItemID uint    `json:"item_id"`
	Kind   string  `json:"kind"`
	Weight float64 `json:"weight"`
}

// Config item kinds.
const (
	ConfigItemActivity   = "activity"
	ConfigItemEvaluation = "evaluation"
)

// DecodeItems unmarshals the configured item list. Items without an explicit
// weight default to 1; an explicit weight of 0 is preserved.
func (c EvaluationConfig) DecodeItems() ([]EvaluationConfigItem, error) {
	if len(c.Items) == 0 {
		return nil, nil
	}

	var raw []struct {
		ItemID uint     `json:"item_id"`
		Kind   string   `json:"kind"`
		Weight *float64 `json:"weight"`
	}
	if err := json.Unmarshal(c.Items, &raw); err != nil {
		return nil, err
	}

	items := make([]EvaluationConfigItem, 0, len(raw))
	for _, entry := range raw {
		weight := 1.0
		if entry.Weight != nil {
			weight = *entry.Weight
		}
		items = append(items, EvaluationConfigItem{
			ItemID: entry.ItemID,
			Kind:   entry.Kind,
			Weight: weight,
		})
	}

	return items, nil
}
