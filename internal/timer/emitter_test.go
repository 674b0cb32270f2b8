package timer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jornadahq/jornada/internal/domain"
)

func emissionSnapshot(started time.Time) Snapshot {
	return Snapshot{
		WorkerID:           "w1",
		ProjectID:          "p1",
		TaskID:             "t2",
		StartedAt:          started,
		ElapsedWorkSeconds: 7425, // 2.0625h
		PauseCount:         2,
		ProgressPercentage: 55,
		LatestNote:         "endpoints wired",
	}
}

func TestEmitFinalBuildsEntry(t *testing.T) {
	started := time.Date(2025, 3, 10, 8, 30, 0, 0, time.Local)
	now := started.Add(3 * time.Hour)
	sink := &captureSink{}
	e := NewEmitter(sink, staticDir{"p1/t2": "Backend API"})

	snap := emissionSnapshot(started)
	lunchStart := started.Add(time.Hour)
	lunchEnd := lunchStart.Add(45 * time.Minute)
	snap.LunchStartedAt = &lunchStart
	snap.LunchEndedAt = &lunchEnd

	entry, err := e.EmitFinal(context.Background(), snap, now)
	if err != nil {
		t.Fatalf("EmitFinal: %v", err)
	}

	if entry.ID == "" {
		t.Error("entry ID should be assigned")
	}
	if entry.UserID != "w1" || entry.ProjectID != "p1" || entry.TaskID != "t2" {
		t.Errorf("entry identity = %s/%s/%s", entry.UserID, entry.ProjectID, entry.TaskID)
	}
	if entry.Date != "2025-03-10" {
		t.Errorf("date = %q, want 2025-03-10", entry.Date)
	}
	if entry.StartTime != "08:30" {
		t.Errorf("startTime = %q, want 08:30", entry.StartTime)
	}
	if entry.EndTime == nil || *entry.EndTime != "11:30" {
		t.Errorf("endTime = %v, want 11:30", entry.EndTime)
	}
	if entry.LunchStartTime == nil || *entry.LunchStartTime != "09:30" {
		t.Errorf("lunchStartTime = %v, want 09:30", entry.LunchStartTime)
	}
	if entry.LunchEndTime == nil || *entry.LunchEndTime != "10:15" {
		t.Errorf("lunchEndTime = %v, want 10:15", entry.LunchEndTime)
	}
	if entry.EffectiveHours != 2.06 {
		t.Errorf("effectiveHours = %v, want 2.06", entry.EffectiveHours)
	}
	if entry.Notes != "Backend API - 2h worked" {
		t.Errorf("notes = %q", entry.Notes)
	}
	if entry.ProgressPercentage != 55 || entry.ProgressJustification != "endpoints wired" {
		t.Errorf("progress = %v %q", entry.ProgressPercentage, entry.ProgressJustification)
	}
	if entry.PauseCount != 2 {
		t.Errorf("pauseCount = %d, want 2", entry.PauseCount)
	}
	if !entry.Editable {
		t.Error("freshly emitted entry should be editable")
	}
	if len(sink.all()) != 1 {
		t.Errorf("sink received %d entries, want 1", len(sink.all()))
	}
}

func TestEmitPartialPrefixesNotes(t *testing.T) {
	started := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	sink := &captureSink{}
	e := NewEmitter(sink, staticDir{"p1/t2": "Backend API"})

	entry, err := e.EmitPartial(context.Background(), emissionSnapshot(started), started.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("EmitPartial: %v", err)
	}
	if entry.Notes != "[Partial] Backend API - 2h worked" {
		t.Errorf("notes = %q", entry.Notes)
	}
}

func TestEmitFallsBackOnUnknownTask(t *testing.T) {
	started := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	e := NewEmitter(&captureSink{}, staticDir{})

	entry, err := e.EmitFinal(context.Background(), emissionSnapshot(started), started.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("EmitFinal: %v", err)
	}
	if !strings.HasPrefix(entry.Notes, "Task - ") {
		t.Errorf("notes = %q, want generic task name", entry.Notes)
	}
}

type failingSink struct{ err error }

func (s failingSink) AppendEntry(context.Context, *domain.TimeEntry) error { return s.err }

func TestEmitWrapsSinkError(t *testing.T) {
	started := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	sinkErr := errors.New("disk full")
	e := NewEmitter(failingSink{err: sinkErr}, staticDir{})

	_, err := e.EmitFinal(context.Background(), emissionSnapshot(started), started.Add(time.Hour))
	if !errors.Is(err, sinkErr) {
		t.Errorf("err = %v, want wrapped sink error", err)
	}
}
