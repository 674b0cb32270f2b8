package timer

import (
	"strings"
	"time"

	"github.com/jornadahq/jornada/internal/domain"
)

// Journal records the chronological progress history of the active task:
// manual progress notes and hourly milestones. It is cleared whenever a
// session starts or the worker switches task.
type Journal struct {
	notes      []domain.ProgressNote
	milestones []domain.HourlyMilestone
}

// Record appends a manual progress note. The percentage is clamped to
// [0,100]; an empty note is rejected and nothing is stored.
func (j *Journal) Record(percentage float64, note string, now time.Time) bool {
	if strings.TrimSpace(note) == "" {
		return false
	}
	j.notes = append(j.notes, domain.ProgressNote{
		Percentage: clampPercentage(percentage),
		Note:       note,
		RecordedAt: now,
	})
	return true
}

// RecordMilestone appends an hourly milestone. It always succeeds: both the
// explicit-description and dismiss paths record the hour, only the
// description source differs.
func (j *Journal) RecordMilestone(hour int, description string, percentage float64, now time.Time) {
	j.milestones = append(j.milestones, domain.HourlyMilestone{
		Hour:        hour,
		FiredAt:     now,
		Description: description,
		Percentage:  percentage,
	})
}

// LatestPercentage returns the most recent manual progress value, or 0 when
// none has been recorded.
func (j *Journal) LatestPercentage() float64 {
	if len(j.notes) == 0 {
		return 0
	}
	return j.notes[len(j.notes)-1].Percentage
}

// LatestNote returns the most recent manual note text, or "".
func (j *Journal) LatestNote() string {
	if len(j.notes) == 0 {
		return ""
	}
	return j.notes[len(j.notes)-1].Note
}

// Notes returns a copy of the recorded progress notes in order.
func (j *Journal) Notes() []domain.ProgressNote {
	return append([]domain.ProgressNote(nil), j.notes...)
}

// Milestones returns a copy of the fired milestones in order.
func (j *Journal) Milestones() []domain.HourlyMilestone {
	return append([]domain.HourlyMilestone(nil), j.milestones...)
}

// Reset clears all notes and milestones.
func (j *Journal) Reset() {
	j.notes = nil
	j.milestones = nil
}

func clampPercentage(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
