package timer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jornadahq/jornada/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureSink struct {
	mu      sync.Mutex
	entries []*domain.TimeEntry
}

func (s *captureSink) AppendEntry(_ context.Context, entry *domain.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

func (s *captureSink) all() []*domain.TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.TimeEntry(nil), s.entries...)
}

type staticDir map[string]string

func (d staticDir) TaskName(_ context.Context, projectID, taskID string) (string, error) {
	if name, ok := d[projectID+"/"+taskID]; ok {
		return name, nil
	}
	return "", errors.New("unknown task")
}

func newTestSession(t *testing.T) (*Jornada, *fakeClock, *captureSink) {
	t.Helper()
	clock := newFakeClock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local))
	sink := &captureSink{}
	dir := staticDir{
		"p1/t2": "Backend API",
		"p1/t3": "Frontend",
	}
	// Ticks are driven manually; keep the background ticker out of the way.
	policy := DefaultPolicy()
	policy.TickInterval = time.Hour
	j := New("w1", policy, clock, NewEmitter(sink, dir))
	t.Cleanup(j.Close)
	return j, clock, sink
}

// workFor advances the clock while working, ticking at every hour boundary
// so milestone detection sees the same cadence a live ticker would.
func workFor(j *Jornada, clock *fakeClock, d time.Duration) {
	for d > 0 {
		step := time.Hour
		if d < step {
			step = d
		}
		clock.Advance(step)
		j.Tick(clock.Now())
		d -= step
	}
}

func TestStartRequiresProjectAndTask(t *testing.T) {
	j, _, _ := newTestSession(t)

	if j.Start("", "t2") {
		t.Error("Start with empty project should be rejected")
	}
	if j.Start("p1", "  ") {
		t.Error("Start with blank task should be rejected")
	}
	if got := j.Status(); got != domain.StatusInactive {
		t.Errorf("status = %q, want inactive", got)
	}

	if !j.Start("p1", "t2") {
		t.Fatal("valid Start should be applied")
	}
	if got := j.Status(); got != domain.StatusWorking {
		t.Errorf("status = %q, want working", got)
	}
}

func TestStartWhileActiveIsNoOp(t *testing.T) {
	j, _, _ := newTestSession(t)
	j.Start("p1", "t2")

	if j.Start("p1", "t3") {
		t.Error("Start while working should be a no-op")
	}
	snap := j.Snapshot()
	if snap.TaskID != "t2" {
		t.Errorf("taskID = %q, want t2", snap.TaskID)
	}
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	j, _, sink := newTestSession(t)

	if j.Pause() || j.Resume() || j.StartLunch() || j.EndLunch() || j.EndDay() || j.Acknowledge() {
		t.Error("commands on an inactive session should all be no-ops")
	}
	if j.SwitchTask("p1", "t3") {
		t.Error("SwitchTask on an inactive session should be a no-op")
	}

	j.Start("p1", "t2")
	if j.Resume() {
		t.Error("Resume while working should be a no-op")
	}
	if j.EndLunch() {
		t.Error("EndLunch while working should be a no-op")
	}

	j.StartLunch()
	if j.Pause() {
		t.Error("Pause during lunch should be a no-op")
	}
	if j.SwitchTask("p1", "t3") {
		t.Error("SwitchTask during lunch should be a no-op")
	}

	if len(sink.all()) != 0 {
		t.Errorf("no-op commands emitted %d entries, want 0", len(sink.all()))
	}
}

func TestWorkSecondsMonotonicUnderTicks(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")

	last := 0
	for i := 0; i < 100; i++ {
		clock.Advance(time.Second)
		j.Tick(clock.Now())
		ws := j.Snapshot().ElapsedWorkSeconds
		if ws < last {
			t.Fatalf("elapsedWorkSeconds decreased: %d -> %d", last, ws)
		}
		last = ws
	}
	if last != 100 {
		t.Errorf("elapsedWorkSeconds = %d, want 100", last)
	}
}

func TestLunchAlertFiresOnceAtFourHours(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")

	workFor(j, clock, 4*time.Hour)
	snap := j.Snapshot()
	if !snap.ShowLunchAlert {
		t.Fatal("lunch alert should be shown at the 4h boundary")
	}
	if snap.ElapsedWorkSeconds != 14400 {
		t.Errorf("elapsedWorkSeconds = %d, want 14400", snap.ElapsedWorkSeconds)
	}
	if snap.PendingMilestoneHour != 0 {
		t.Errorf("hour 4 raised a milestone prompt, pending = %d", snap.PendingMilestoneHour)
	}

	if !j.DismissLunchAlert() {
		t.Fatal("DismissLunchAlert should be applied while shown")
	}
	clock.Advance(time.Minute)
	j.Tick(clock.Now())
	if j.Snapshot().ShowLunchAlert {
		t.Error("lunch alert re-fired after dismissal")
	}
	if got := j.Status(); got != domain.StatusWorking {
		t.Errorf("dismissal changed status to %q", got)
	}
}

func TestLunchExcludedFromWork(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")
	workFor(j, clock, 4*time.Hour)

	if !j.StartLunch() {
		t.Fatal("StartLunch should be applied while working")
	}
	clock.Advance(45 * time.Minute)
	if !j.EndLunch() {
		t.Fatal("EndLunch should be applied during lunch")
	}

	snap := j.Snapshot()
	if snap.Status != domain.StatusWorking {
		t.Errorf("status = %q, want working", snap.Status)
	}
	if snap.ElapsedLunchSeconds != 2700 {
		t.Errorf("elapsedLunchSeconds = %d, want 2700", snap.ElapsedLunchSeconds)
	}
	if snap.ElapsedWorkSeconds != 14400 {
		t.Errorf("elapsedWorkSeconds = %d, want 14400 (unchanged by lunch)", snap.ElapsedWorkSeconds)
	}
	if snap.LunchStartedAt == nil || snap.LunchEndedAt == nil {
		t.Error("lunch boundaries should both be recorded after the interval closes")
	}
}

func TestLunchCountersDuringOpenInterval(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")
	workFor(j, clock, time.Hour+30*time.Minute)
	j.DismissMilestonePrompt()

	j.StartLunch()
	clock.Advance(10 * time.Minute)

	snap := j.Snapshot()
	if snap.Status != domain.StatusLunch {
		t.Fatalf("status = %q, want lunch", snap.Status)
	}
	if snap.ElapsedLunchSeconds != 600 {
		t.Errorf("elapsedLunchSeconds = %d, want 600 mid-interval", snap.ElapsedLunchSeconds)
	}
	if snap.ElapsedWorkSeconds != 5400 {
		t.Errorf("elapsedWorkSeconds = %d, want 5400 (frozen during lunch)", snap.ElapsedWorkSeconds)
	}
}

func TestEndWarningFiresOnce(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")

	workFor(j, clock, 7*time.Hour+55*time.Minute)
	snap := j.Snapshot()
	if !snap.ShowEndWarning {
		t.Fatal("end warning should be shown at 7h55m")
	}
	if snap.Status != domain.StatusWorking {
		t.Errorf("status = %q, want working (warning is not a transition)", snap.Status)
	}

	j.DismissEndWarning()
	clock.Advance(time.Minute)
	j.Tick(clock.Now())
	if j.Snapshot().ShowEndWarning {
		t.Error("end warning re-fired after dismissal")
	}
}

func TestWorkdayCapForcesFinish(t *testing.T) {
	j, clock, sink := newTestSession(t)
	j.Start("p1", "t2")

	workFor(j, clock, 8*time.Hour)
	snap := j.Snapshot()
	if snap.Status != domain.StatusFinished {
		t.Fatalf("status = %q, want finished at the 8h cap", snap.Status)
	}
	if !snap.ShowDaySummary {
		t.Error("day summary should be shown on finish")
	}
	if snap.ElapsedWorkSeconds != 28800 {
		t.Errorf("elapsedWorkSeconds = %d, want 28800", snap.ElapsedWorkSeconds)
	}

	entries := sink.all()
	if len(entries) != 1 {
		t.Fatalf("entries emitted = %d, want 1", len(entries))
	}
	if entries[0].EffectiveHours != 8.00 {
		t.Errorf("effectiveHours = %v, want 8.00", entries[0].EffectiveHours)
	}
	if entries[0].Status != domain.StatusFinished {
		t.Errorf("entry status = %q, want finished", entries[0].Status)
	}

	// No further accumulation once capped.
	clock.Advance(time.Hour)
	j.Tick(clock.Now())
	if got := j.Snapshot().ElapsedWorkSeconds; got != 28800 {
		t.Errorf("elapsedWorkSeconds after cap = %d, want 28800", got)
	}
	if len(sink.all()) != 1 {
		t.Error("cap finish emitted more than one final entry")
	}
}

func TestCapOvershootClampsToCap(t *testing.T) {
	j, clock, sink := newTestSession(t)
	j.Start("p1", "t2")

	// A single late tick past the cap must still clamp at exactly 8h.
	clock.Advance(9 * time.Hour)
	j.Tick(clock.Now())

	snap := j.Snapshot()
	if snap.Status != domain.StatusFinished {
		t.Fatalf("status = %q, want finished", snap.Status)
	}
	if snap.ElapsedWorkSeconds != 28800 {
		t.Errorf("elapsedWorkSeconds = %d, want 28800", snap.ElapsedWorkSeconds)
	}
	if got := sink.all()[0].EffectiveHours; got != 8.00 {
		t.Errorf("effectiveHours = %v, want 8.00", got)
	}
}

func TestPauseResumeAccounting(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")
	workFor(j, clock, 30*time.Minute)

	if !j.Pause() {
		t.Fatal("Pause should be applied while working")
	}
	clock.Advance(20 * time.Minute)
	snap := j.Snapshot()
	if snap.ElapsedWorkSeconds != 1800 {
		t.Errorf("elapsedWorkSeconds = %d, want 1800 (frozen during pause)", snap.ElapsedWorkSeconds)
	}
	if snap.ElapsedPauseSeconds != 1200 {
		t.Errorf("elapsedPauseSeconds = %d, want 1200 mid-interval", snap.ElapsedPauseSeconds)
	}

	if !j.Resume() {
		t.Fatal("Resume should be applied while paused")
	}
	snap = j.Snapshot()
	if snap.PauseCount != 1 {
		t.Errorf("pauseCount = %d, want 1", snap.PauseCount)
	}
	if snap.PauseStartedAt != nil {
		t.Error("pauseStartedAt should be cleared after resume")
	}

	workFor(j, clock, 10*time.Minute)
	if got := j.Snapshot().ElapsedWorkSeconds; got != 2400 {
		t.Errorf("elapsedWorkSeconds = %d, want 2400", got)
	}
}

func TestSwitchTaskEmitsPartialEntry(t *testing.T) {
	j, clock, sink := newTestSession(t)
	j.Start("p1", "t2")
	workFor(j, clock, 2*time.Hour)
	j.DismissMilestonePrompt()
	j.RecordProgress(40, "API scaffolding done")

	if !j.SwitchTask("p1", "t3") {
		t.Fatal("SwitchTask should be applied while working")
	}

	entries := sink.all()
	if len(entries) != 1 {
		t.Fatalf("entries emitted = %d, want 1 partial", len(entries))
	}
	partial := entries[0]
	if !strings.HasPrefix(partial.Notes, "[Partial] ") {
		t.Errorf("partial notes = %q, want [Partial] prefix", partial.Notes)
	}
	if !strings.Contains(partial.Notes, "Backend API") {
		t.Errorf("partial notes = %q, want task name of the task being left", partial.Notes)
	}
	if partial.TaskID != "t2" {
		t.Errorf("partial taskID = %q, want t2", partial.TaskID)
	}
	if partial.EffectiveHours != 2.00 {
		t.Errorf("partial effectiveHours = %v, want 2.00", partial.EffectiveHours)
	}
	if partial.ProgressPercentage != 40 {
		t.Errorf("partial progressPercentage = %v, want 40", partial.ProgressPercentage)
	}
	if partial.ProgressJustification != "API scaffolding done" {
		t.Errorf("partial justification = %q", partial.ProgressJustification)
	}

	snap := j.Snapshot()
	if snap.TaskID != "t3" {
		t.Errorf("current taskID = %q, want t3", snap.TaskID)
	}
	if snap.ElapsedWorkSeconds != 7200 {
		t.Errorf("elapsedWorkSeconds = %d, want 7200 (not reset by switch)", snap.ElapsedWorkSeconds)
	}
	if snap.ProgressPercentage != 0 {
		t.Errorf("progressPercentage = %v, want 0 after journal reset", snap.ProgressPercentage)
	}
}

func TestSwitchTaskEntryCount(t *testing.T) {
	j, clock, sink := newTestSession(t)
	j.Start("p1", "t2")

	const switches = 3
	for i := 0; i < switches; i++ {
		workFor(j, clock, 30*time.Minute)
		target := "t3"
		if i%2 == 1 {
			target = "t2"
		}
		if !j.SwitchTask("p1", target) {
			t.Fatalf("switch %d not applied", i)
		}
	}
	if !j.EndDay() {
		t.Fatal("EndDay should be applied")
	}

	entries := sink.all()
	if len(entries) != switches+1 {
		t.Fatalf("entries = %d, want %d partials + 1 final", len(entries), switches)
	}
	for i, e := range entries[:switches] {
		if !strings.HasPrefix(e.Notes, "[Partial] ") {
			t.Errorf("entry %d notes = %q, want partial", i, e.Notes)
		}
	}
	if strings.HasPrefix(entries[switches].Notes, "[Partial] ") {
		t.Error("final entry should not be tagged partial")
	}
}

func TestSwitchTaskWhilePaused(t *testing.T) {
	j, clock, sink := newTestSession(t)
	j.Start("p1", "t2")
	workFor(j, clock, time.Hour)
	j.DismissMilestonePrompt()
	j.Pause()
	clock.Advance(15 * time.Minute)

	if !j.SwitchTask("p1", "t3") {
		t.Fatal("SwitchTask should be applied while paused")
	}
	partial := sink.all()[0]
	if partial.EffectiveHours != 1.00 {
		t.Errorf("partial effectiveHours = %v, want 1.00 (open pause excluded)", partial.EffectiveHours)
	}
	if got := j.Status(); got != domain.StatusPaused {
		t.Errorf("status = %q, want still paused after switch", got)
	}
}

func TestEndDayConservation(t *testing.T) {
	j, clock, sink := newTestSession(t)
	j.Start("p1", "t2")

	workFor(j, clock, 2*time.Hour) // 2h work
	j.DismissMilestonePrompt()
	j.Pause()
	clock.Advance(30 * time.Minute) // 30m pause
	j.Resume()
	workFor(j, clock, time.Hour) // 1h work
	j.StartLunch()
	clock.Advance(45 * time.Minute) // 45m lunch
	j.EndLunch()
	workFor(j, clock, 90*time.Minute) // 1h30m work

	if !j.EndDay() {
		t.Fatal("EndDay should be applied")
	}

	// 4h30m of effective work out of 5h45m wall clock.
	snap := j.Snapshot()
	if snap.ElapsedWorkSeconds != 16200 {
		t.Errorf("elapsedWorkSeconds = %d, want 16200", snap.ElapsedWorkSeconds)
	}
	entries := sink.all()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].EffectiveHours != 4.5 {
		t.Errorf("effectiveHours = %v, want 4.5", entries[0].EffectiveHours)
	}
	if entries[0].PauseCount != 1 {
		t.Errorf("pauseCount = %v, want 1", entries[0].PauseCount)
	}
	if entries[0].LunchStartTime == nil || entries[0].LunchEndTime == nil {
		t.Error("final entry should carry the lunch interval")
	}
}

func TestEndDayDuringLunchClosesInterval(t *testing.T) {
	j, clock, sink := newTestSession(t)
	j.Start("p1", "t2")
	workFor(j, clock, 3*time.Hour)
	j.DismissMilestonePrompt()
	j.StartLunch()
	clock.Advance(20 * time.Minute)

	if !j.EndDay() {
		t.Fatal("EndDay should be applied during lunch")
	}
	entry := sink.all()[0]
	if entry.EffectiveHours != 3.00 {
		t.Errorf("effectiveHours = %v, want 3.00", entry.EffectiveHours)
	}
	if entry.LunchEndTime == nil {
		t.Error("open lunch interval should be closed by EndDay")
	}
}

func TestHourlyMilestones(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")

	var prompted []int
	for hour := 1; hour <= 7; hour++ {
		workFor(j, clock, time.Hour)
		snap := j.Snapshot()
		if snap.PendingMilestoneHour != 0 {
			prompted = append(prompted, snap.PendingMilestoneHour)
			if hour <= 3 {
				if !j.RecordMilestone("checkpoint") {
					t.Fatalf("RecordMilestone at hour %d not applied", hour)
				}
			} else {
				if !j.DismissMilestonePrompt() {
					t.Fatalf("DismissMilestonePrompt at hour %d not applied", hour)
				}
			}
		}
	}

	want := []int{1, 2, 3, 5, 6, 7}
	if len(prompted) != len(want) {
		t.Fatalf("prompted hours = %v, want %v", prompted, want)
	}
	for i, h := range want {
		if prompted[i] != h {
			t.Fatalf("prompted hours = %v, want %v", prompted, want)
		}
	}

	milestones := j.Snapshot().Milestones
	if len(milestones) != 6 {
		t.Fatalf("milestones recorded = %d, want 6", len(milestones))
	}
	for i, m := range milestones {
		if m.Hour != want[i] {
			t.Errorf("milestone %d hour = %d, want %d", i, m.Hour, want[i])
		}
		if m.Hour == 1 && m.Percentage != 12.5 {
			t.Errorf("hour 1 percentage = %v, want 12.5", m.Percentage)
		}
	}
	// Dismissed prompts still record a milestone, with generated text.
	if got := milestones[3].Description; got != "Hour 5 completed" {
		t.Errorf("dismissed milestone description = %q, want generated", got)
	}
	if got := milestones[0].Description; got != "checkpoint" {
		t.Errorf("recorded milestone description = %q, want explicit", got)
	}
}

func TestMilestoneSingleFireAcrossPauses(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")

	workFor(j, clock, time.Hour)
	if got := j.Snapshot().PendingMilestoneHour; got != 1 {
		t.Fatalf("pending milestone = %d, want 1", got)
	}
	j.DismissMilestonePrompt()

	// Pause and resume around the boundary; the hour must not refire.
	j.Pause()
	clock.Advance(10 * time.Minute)
	j.Resume()
	clock.Advance(time.Second)
	j.Tick(clock.Now())

	if got := j.Snapshot().PendingMilestoneHour; got != 0 {
		t.Errorf("pending milestone after pause cycle = %d, want 0", got)
	}
}

func TestMilestonePromptWithoutPendingIsNoOp(t *testing.T) {
	j, _, _ := newTestSession(t)
	j.Start("p1", "t2")

	if j.RecordMilestone("early") {
		t.Error("RecordMilestone with no pending prompt should be a no-op")
	}
	if j.DismissMilestonePrompt() {
		t.Error("DismissMilestonePrompt with no pending prompt should be a no-op")
	}
}

func TestRecordProgressClampAndGuards(t *testing.T) {
	j, _, _ := newTestSession(t)
	if j.RecordProgress(50, "too early") {
		t.Error("RecordProgress before start should be rejected")
	}

	j.Start("p1", "t2")
	if !j.RecordProgress(150, "overshoot") {
		t.Fatal("RecordProgress should be applied")
	}
	if got := j.Snapshot().ProgressPercentage; got != 100 {
		t.Errorf("progressPercentage = %v, want clamped 100", got)
	}

	if !j.RecordProgress(-5, "undershoot") {
		t.Fatal("RecordProgress should be applied")
	}
	if got := j.Snapshot().ProgressPercentage; got != 0 {
		t.Errorf("progressPercentage = %v, want clamped 0", got)
	}

	j.RecordProgress(65, "Halfway done")
	if j.RecordProgress(80, "") {
		t.Error("RecordProgress with empty note should be rejected")
	}
	if got := j.Snapshot().ProgressPercentage; got != 65 {
		t.Errorf("progressPercentage = %v, want 65 (empty-note call ignored)", got)
	}
}

func TestAcknowledgeClearsSession(t *testing.T) {
	j, clock, sink := newTestSession(t)
	j.Start("p1", "t2")
	workFor(j, clock, time.Hour)
	j.DismissMilestonePrompt()
	j.EndDay()

	if !j.Acknowledge() {
		t.Fatal("Acknowledge should be applied when finished")
	}
	snap := j.Snapshot()
	if snap.Status != domain.StatusInactive {
		t.Errorf("status = %q, want inactive", snap.Status)
	}
	if snap.ElapsedWorkSeconds != 0 || snap.PauseCount != 0 {
		t.Error("counters should be cleared after acknowledge")
	}
	if snap.ShowDaySummary {
		t.Error("day summary should be cleared after acknowledge")
	}
	if len(sink.all()) != 1 {
		t.Error("Acknowledge must not emit an entry")
	}

	// A fresh session can start and fires milestones from scratch.
	if !j.Start("p1", "t3") {
		t.Fatal("Start after acknowledge should be applied")
	}
	workFor(j, clock, time.Hour)
	if got := j.Snapshot().PendingMilestoneHour; got != 1 {
		t.Errorf("pending milestone in new session = %d, want 1", got)
	}
}

func TestClockAnomalyNeverGoesNegative(t *testing.T) {
	j, clock, _ := newTestSession(t)
	j.Start("p1", "t2")

	// Clock jumps backward past the session start.
	clock.Advance(-2 * time.Hour)
	j.Tick(clock.Now())
	if got := j.Snapshot().ElapsedWorkSeconds; got != 0 {
		t.Errorf("elapsedWorkSeconds = %d, want floored 0 after backward jump", got)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	j, clock, _ := newTestSession(t)
	events := j.Subscribe(16)

	j.Start("p1", "t2")
	clock.Advance(time.Second)
	j.Tick(clock.Now())
	j.EndDay()

	var types []EventType
	for {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		default:
			goto done
		}
	}
done:
	if len(types) == 0 || types[0] != EventStateChange {
		t.Fatalf("event types = %v, want leading state_change", types)
	}
	var sawEntry, sawProgress bool
	for _, ty := range types {
		if ty == EventEntryEmitted {
			sawEntry = true
		}
		if ty == EventProgress {
			sawProgress = true
		}
	}
	if !sawProgress {
		t.Error("expected a progress event from the tick")
	}
	if !sawEntry {
		t.Error("expected an entry_emitted event from EndDay")
	}
}

func TestCloseStopsObservers(t *testing.T) {
	j, _, _ := newTestSession(t)
	events := j.Subscribe(1)
	j.Close()

	if _, ok := <-events; ok {
		t.Error("observer channel should be closed after Close")
	}
	if j.Start("p1", "t2") {
		t.Error("Start after Close should be rejected")
	}
}
