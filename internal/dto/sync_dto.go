package dto

import "time"

// Change-notification tables and event kinds. A subscriber reacts to any of
// these by re-pulling the full aggregation result for the scoped session.
const (
	ChangeTableActivities  = "activities"
	ChangeTableSubmissions = "submissions"
	ChangeTableGrades      = "grades"

	ChangeEventInsert = "insert"
	ChangeEventUpdate = "update"
	ChangeEventDelete = "delete"
)

// ChangeEvent notifies subscribers that something inside a session changed.
// It carries no payload; subscribers re-fetch, they never patch.
type ChangeEvent struct {
	Scope uint      `json:"scope"`
	Table string    `json:"table"`
	Event string    `json:"event"`
	At    time.Time `json:"at"`
}

// ProgressPing is an advisory, lossy signal that a learner is working on an
// activity. Losing one never corrupts state; it only delays UI freshness.
type ProgressPing struct {
	SessionID  uint      `json:"session_id"`
	UserID     uint      `json:"user_id"`
	ActivityID uint      `json:"activity_id"`
	At         time.Time `json:"at"`
}
