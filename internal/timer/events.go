package timer

import (
	"time"

	"github.com/jornadahq/jornada/internal/domain"
)

// EventType defines the type of a session event.
type EventType string

const (
	EventStateChange     EventType = "state_change"
	EventProgress        EventType = "progress"
	EventLunchAlert      EventType = "lunch_alert"
	EventEndWarning      EventType = "end_warning"
	EventMilestonePrompt EventType = "milestone_prompt"
	EventEntryEmitted    EventType = "entry_emitted"
)

// Event represents a session update for observers.
type Event struct {
	Type         EventType
	Status       domain.Status
	WorkSeconds  int
	LunchSeconds int
	PauseSeconds int
	Hour         int
	Entry        *domain.TimeEntry
	At           time.Time
}
