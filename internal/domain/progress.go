package domain

import "time"

// ProgressNote is a worker-submitted progress update for the active task.
type ProgressNote struct {
	Percentage float64   `json:"percentage"`
	Note       string    `json:"note"`
	RecordedAt time.Time `json:"recordedAt"`
}

// HourlyMilestone marks a completed hour of effective work. Hour 4 never
// appears here: that boundary is reserved for the mandatory lunch alert.
type HourlyMilestone struct {
	Hour        int       `json:"hour"`
	FiredAt     time.Time `json:"firedAt"`
	Description string    `json:"description"`
	Percentage  float64   `json:"percentage"`
}
