package domain

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar-date format used by time entries.
	DateLayout = "2006-01-02"
	// ClockLayout is the wall-clock format used by time entries.
	ClockLayout = "15:04"
	// DefaultScheduleEnd is the close time assumed for entries without one.
	DefaultScheduleEnd = "17:00"
)

// TimeEntry is an immutable record of work attributed to a task, produced
// when a jornada ends or when the worker switches task mid-session. Field
// names are fixed: downstream reporting consumers depend on them.
type TimeEntry struct {
	ID                    string  `json:"id"`
	UserID                string  `json:"userId"`
	ProjectID             string  `json:"projectId"`
	TaskID                string  `json:"taskId"`
	Date                  string  `json:"date"`
	StartTime             string  `json:"startTime"`
	LunchStartTime        *string `json:"lunchStartTime"`
	LunchEndTime          *string `json:"lunchEndTime"`
	EndTime               *string `json:"endTime"`
	EffectiveHours        float64 `json:"effectiveHours"`
	Status                Status  `json:"status"`
	Notes                 string  `json:"notes"`
	ProgressPercentage    float64 `json:"progressPercentage"`
	PauseCount            int     `json:"pauseCount"`
	ProgressJustification string  `json:"progressJustification"`
	Editable              bool    `json:"editable"`
}

// CloseTime returns the instant the entry closed: its date combined with
// its end clock time, or DefaultScheduleEnd when no end time was recorded.
func (e *TimeEntry) CloseTime() (time.Time, error) {
	end := DefaultScheduleEnd
	if e.EndTime != nil && *e.EndTime != "" {
		end = *e.EndTime
	}
	closed, err := time.ParseInLocation(DateLayout+" "+ClockLayout, e.Date+" "+end, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse entry close time: %w", err)
	}
	return closed, nil
}

// EditableAt reports whether the entry may still be edited at the given
// instant. Entries stay editable for the window following their close time;
// this is derived from the clock, never trusted from storage.
func (e *TimeEntry) EditableAt(now time.Time, window time.Duration) bool {
	closed, err := e.CloseTime()
	if err != nil {
		return false
	}
	return now.Before(closed.Add(window))
}
