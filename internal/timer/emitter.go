package timer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jornadahq/jornada/internal/domain"
)

// partialPrefix tags entries emitted mid-session on task switch.
const partialPrefix = "[Partial] "

// EntrySink receives emitted time entries. The store is append-only from
// the session's perspective: one append per qualifying transition, in
// emission order, never re-read or mutated afterwards.
type EntrySink interface {
	AppendEntry(ctx context.Context, entry *domain.TimeEntry) error
}

// TaskDirectory resolves task display names for entry notes.
type TaskDirectory interface {
	TaskName(ctx context.Context, projectID, taskID string) (string, error)
}

// Emitter materializes session snapshots into immutable time entries and
// appends them to the sink.
type Emitter struct {
	sink EntrySink
	dir  TaskDirectory
}

// NewEmitter creates an Emitter writing to sink and resolving names via dir.
func NewEmitter(sink EntrySink, dir TaskDirectory) *Emitter {
	return &Emitter{sink: sink, dir: dir}
}

// EmitFinal produces the session-ending entry: normal end of day or the
// forced workday-cap finish.
func (e *Emitter) EmitFinal(ctx context.Context, snap Snapshot, now time.Time) (*domain.TimeEntry, error) {
	return e.emit(ctx, snap, now, false)
}

// EmitPartial produces a mid-session entry for the task being left on a
// task switch. It must be called before the session mutates its task.
func (e *Emitter) EmitPartial(ctx context.Context, snap Snapshot, now time.Time) (*domain.TimeEntry, error) {
	return e.emit(ctx, snap, now, true)
}

func (e *Emitter) emit(ctx context.Context, snap Snapshot, now time.Time, partial bool) (*domain.TimeEntry, error) {
	effectiveHours := math.Round(float64(snap.ElapsedWorkSeconds)/3600*100) / 100

	taskName := "Task"
	if e.dir != nil {
		if name, err := e.dir.TaskName(ctx, snap.ProjectID, snap.TaskID); err == nil && name != "" {
			taskName = name
		}
	}
	notes := fmt.Sprintf("%s - %dh worked", taskName, int(math.Round(effectiveHours)))
	if partial {
		notes = partialPrefix + notes
	}

	endTime := now.Format(domain.ClockLayout)
	entry := &domain.TimeEntry{
		ID:                    uuid.NewString(),
		UserID:                snap.WorkerID,
		ProjectID:             snap.ProjectID,
		TaskID:                snap.TaskID,
		Date:                  now.Format(domain.DateLayout),
		StartTime:             snap.StartedAt.Format(domain.ClockLayout),
		LunchStartTime:        formatClock(snap.LunchStartedAt),
		LunchEndTime:          formatClock(snap.LunchEndedAt),
		EndTime:               &endTime,
		EffectiveHours:        effectiveHours,
		Status:                domain.StatusFinished,
		Notes:                 notes,
		ProgressPercentage:    snap.ProgressPercentage,
		PauseCount:            snap.PauseCount,
		ProgressJustification: snap.LatestNote,
		Editable:              true,
	}

	if err := e.sink.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("append time entry: %w", err)
	}
	return entry, nil
}

func formatClock(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(domain.ClockLayout)
	return &s
}
