package timer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jornadahq/jornada/internal/domain"
)

// Snapshot is a read-only view of a session, also used as the input to
// entry emission.
type Snapshot struct {
	Status               domain.Status            `json:"status"`
	WorkerID             string                   `json:"workerId"`
	ProjectID            string                   `json:"currentProjectId"`
	TaskID               string                   `json:"currentTaskId"`
	StartedAt            time.Time                `json:"startedAt"`
	ElapsedWorkSeconds   int                      `json:"elapsedWorkSeconds"`
	ElapsedLunchSeconds  int                      `json:"elapsedLunchSeconds"`
	ElapsedPauseSeconds  int                      `json:"elapsedPauseSeconds"`
	PauseCount           int                      `json:"pauseCount"`
	LunchStartedAt       *time.Time               `json:"lunchStartedAt"`
	LunchEndedAt         *time.Time               `json:"lunchEndedAt"`
	PauseStartedAt       *time.Time               `json:"pauseStartedAt"`
	ProgressPercentage   float64                  `json:"progressPercentage"`
	LatestNote           string                   `json:"progressJustification"`
	Notes                []domain.ProgressNote    `json:"progressNotes"`
	Milestones           []domain.HourlyMilestone `json:"hourlyMilestones"`
	ShowLunchAlert       bool                     `json:"showLunchAlert"`
	ShowEndWarning       bool                     `json:"showEndWarning"`
	ShowDaySummary       bool                     `json:"showDaySummary"`
	PendingMilestoneHour int                      `json:"pendingMilestoneHour"`
}

// Jornada is the state machine for a single worker's workday session.
// Commands return false when they are not valid from the current state;
// invalid calls never mutate state or fail hard, mirroring a UI where
// unavailable actions are simply not offered.
type Jornada struct {
	mu       sync.Mutex
	clock    Clock
	policy   Policy
	emitter  *Emitter
	workerID string

	status     domain.Status
	startedAt  time.Time
	projectID  string
	taskID     string
	acc        Accumulator
	journal    Journal
	pauseCount int

	lunchStartedAt time.Time
	lunchEndedAt   time.Time
	pauseStartedAt time.Time

	lastWorkSeconds int
	milestonesFired map[int]bool
	lunchAlertShown bool
	endWarningShown bool

	showLunchAlert       bool
	showEndWarning       bool
	showDaySummary       bool
	pendingMilestoneHour int

	events     []chan Event
	tickerStop chan struct{}
	closed     bool
}

// New creates a session for one worker. Zero policy fields fall back to
// DefaultPolicy.
func New(workerID string, policy Policy, clock Clock, emitter *Emitter) *Jornada {
	if clock == nil {
		clock = SystemClock()
	}
	return &Jornada{
		clock:           clock,
		policy:          policy.withDefaults(),
		emitter:         emitter,
		workerID:        workerID,
		status:          domain.StatusInactive,
		milestonesFired: make(map[int]bool),
	}
}

// Subscribe registers a new observer channel. Events are delivered
// best-effort: slow observers miss events rather than block the session.
func (j *Jornada) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		close(ch)
		return ch
	}
	j.events = append(j.events, ch)
	return ch
}

// Unsubscribe removes and closes an observer channel.
func (j *Jornada) Unsubscribe(ch <-chan Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, c := range j.events {
		if c == ch {
			j.events = append(j.events[:i], j.events[i+1:]...)
			close(c)
			return
		}
	}
}

// Close stops the ticker and closes all observer channels. The session is
// unusable afterwards.
func (j *Jornada) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.closed = true
	j.stopTickerLocked()
	for _, ch := range j.events {
		close(ch)
	}
	j.events = nil
}

// Start begins a new jornada on the given project and task. Rejected when a
// session is already underway or either identifier is blank.
func (j *Jornada) Start(projectID, taskID string) bool {
	projectID = strings.TrimSpace(projectID)
	taskID = strings.TrimSpace(taskID)
	if projectID == "" || taskID == "" {
		slog.Debug("jornada start rejected: missing project or task", "worker_id", j.workerID)
		return false
	}

	j.mu.Lock()
	if j.closed || j.status != domain.StatusInactive {
		j.mu.Unlock()
		return false
	}
	now := j.clock.Now()
	j.status = domain.StatusWorking
	j.startedAt = now
	j.projectID = projectID
	j.taskID = taskID
	j.acc = Accumulator{}
	j.acc.StartWork(now)
	j.journal.Reset()
	j.pauseCount = 0
	j.lunchStartedAt = time.Time{}
	j.lunchEndedAt = time.Time{}
	j.pauseStartedAt = time.Time{}
	j.lastWorkSeconds = 0
	j.milestonesFired = make(map[int]bool)
	j.lunchAlertShown = false
	j.endWarningShown = false
	j.showLunchAlert = false
	j.showEndWarning = false
	j.showDaySummary = false
	j.pendingMilestoneHour = 0
	j.startTickerLocked()
	j.emitStateLocked(now)
	j.mu.Unlock()

	slog.Info("jornada started", "worker_id", j.workerID, "project_id", projectID, "task_id", taskID)
	return true
}

// StartLunch moves the session from working to lunch.
func (j *Jornada) StartLunch() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != domain.StatusWorking {
		return false
	}
	now := j.clock.Now()
	j.status = domain.StatusLunch
	j.lunchStartedAt = now
	j.lunchEndedAt = time.Time{}
	j.showLunchAlert = false
	j.emitStateLocked(now)
	return true
}

// EndLunch closes the lunch interval and resumes work. Lunch time never
// counts toward effective work.
func (j *Jornada) EndLunch() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != domain.StatusLunch {
		return false
	}
	now := j.clock.Now()
	j.acc.AddLunch(j.lunchStartedAt, now)
	j.lunchEndedAt = now
	j.status = domain.StatusWorking
	j.emitStateLocked(now)
	return true
}

// Pause suspends work and opens a pause interval.
func (j *Jornada) Pause() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != domain.StatusWorking {
		return false
	}
	now := j.clock.Now()
	j.status = domain.StatusPaused
	j.pauseStartedAt = now
	j.pauseCount++
	j.emitStateLocked(now)
	return true
}

// Resume closes the pause interval and returns to working.
func (j *Jornada) Resume() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != domain.StatusPaused {
		return false
	}
	now := j.clock.Now()
	j.acc.AddPause(j.pauseStartedAt, now)
	j.pauseStartedAt = time.Time{}
	j.status = domain.StatusWorking
	j.emitStateLocked(now)
	return true
}

// SwitchTask emits a partial entry for the current task and reassigns the
// session to the new one. The work clock keeps running; the progress
// journal restarts because progress is scoped to the active task.
func (j *Jornada) SwitchTask(projectID, taskID string) bool {
	projectID = strings.TrimSpace(projectID)
	taskID = strings.TrimSpace(taskID)
	if projectID == "" || taskID == "" {
		return false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != domain.StatusWorking && j.status != domain.StatusPaused {
		return false
	}
	now := j.clock.Now()
	ws := j.workSecondsLocked(now)

	snap := j.emissionSnapshotLocked(ws)
	entry, err := j.emitter.EmitPartial(context.Background(), snap, now)
	if err != nil {
		slog.Error("emit partial time entry", "error", err, "worker_id", j.workerID, "task_id", j.taskID)
	} else {
		j.emitLocked(Event{Type: EventEntryEmitted, Status: j.status, WorkSeconds: ws, Entry: entry, At: now})
	}

	slog.Info("jornada task switched",
		"worker_id", j.workerID,
		"from_task", j.taskID,
		"to_task", taskID,
		"work_seconds", ws)

	j.projectID = projectID
	j.taskID = taskID
	j.journal.Reset()
	j.emitStateLocked(now)
	return true
}

// EndDay finishes the session from any active state, closing open lunch or
// pause intervals and emitting the final entry.
func (j *Jornada) EndDay() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.Active() {
		return false
	}
	now := j.clock.Now()
	j.closeOpenIntervalsLocked(now)
	ws := j.clampWorkSeconds(j.acc.EffectiveWorkSeconds(now))
	j.finishLocked(now, ws)
	return true
}

// Acknowledge clears a finished session back to inactive. No entry is
// emitted.
func (j *Jornada) Acknowledge() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != domain.StatusFinished {
		return false
	}
	now := j.clock.Now()
	j.status = domain.StatusInactive
	j.startedAt = time.Time{}
	j.projectID = ""
	j.taskID = ""
	j.acc = Accumulator{}
	j.journal.Reset()
	j.pauseCount = 0
	j.lunchStartedAt = time.Time{}
	j.lunchEndedAt = time.Time{}
	j.pauseStartedAt = time.Time{}
	j.lastWorkSeconds = 0
	j.milestonesFired = make(map[int]bool)
	j.showDaySummary = false
	j.emitStateLocked(now)
	return true
}

// RecordProgress appends a manual progress note for the active task. The
// percentage is clamped to [0,100]; a blank note is rejected.
func (j *Jornada) RecordProgress(percentage float64, note string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.Active() {
		return false
	}
	return j.journal.Record(percentage, note, j.clock.Now())
}

// RecordMilestone resolves the pending hourly prompt with the worker's
// description. An empty description falls back to the generated one.
func (j *Jornada) RecordMilestone(description string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.resolveMilestoneLocked(description)
}

// DismissMilestonePrompt resolves the pending hourly prompt without a
// description. The milestone is still recorded; only its text is generated.
func (j *Jornada) DismissMilestonePrompt() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.resolveMilestoneLocked("")
}

// DismissLunchAlert hides the mandatory-lunch alert without starting lunch.
// The worker may keep working past the threshold; policy is not enforced
// here, only logged.
func (j *Jornada) DismissLunchAlert() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.showLunchAlert {
		return false
	}
	j.showLunchAlert = false
	slog.Warn("mandatory lunch alert dismissed without starting lunch",
		"worker_id", j.workerID,
		"work_seconds", j.lastWorkSeconds)
	return true
}

// DismissEndWarning hides the end-of-day warning.
func (j *Jornada) DismissEndWarning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.showEndWarning {
		return false
	}
	j.showEndWarning = false
	return true
}

// Status returns the current lifecycle state.
func (j *Jornada) Status() domain.Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Snapshot returns a consistent read-only view of the session, with all
// elapsed counters recomputed against the clock.
func (j *Jornada) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.clock.Now()

	snap := j.emissionSnapshotLocked(j.workSecondsLocked(now))
	snap.ElapsedLunchSeconds = j.lunchSecondsLocked(now)
	snap.ElapsedPauseSeconds = j.pauseSecondsLocked(now)
	snap.PauseStartedAt = optionalTime(j.pauseStartedAt)
	snap.Notes = j.journal.Notes()
	snap.Milestones = j.journal.Milestones()
	snap.ShowLunchAlert = j.showLunchAlert
	snap.ShowEndWarning = j.showEndWarning
	snap.ShowDaySummary = j.showDaySummary
	snap.PendingMilestoneHour = j.pendingMilestoneHour
	return snap
}

// Tick advances threshold and milestone detection. It is invoked every
// TickInterval by the internal ticker, but all decisions derive from the
// supplied instant, so skipped or delayed ticks cannot lose time.
func (j *Jornada) Tick(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed || j.status != domain.StatusWorking {
		return
	}

	ws := j.workSecondsLocked(now)
	prev := j.lastWorkSeconds
	j.lastWorkSeconds = ws

	j.detectMilestoneLocked(prev, ws, now)

	if ws >= int(j.policy.LunchAfter/time.Second) && !j.lunchAlertShown {
		j.lunchAlertShown = true
		j.milestonesFired[4] = true
		j.showLunchAlert = true
		j.pendingMilestoneHour = 0
		j.emitLocked(Event{Type: EventLunchAlert, Status: j.status, WorkSeconds: ws, At: now})
	}

	if ws >= int(j.policy.EndWarningAt/time.Second) && !j.endWarningShown {
		j.endWarningShown = true
		j.showEndWarning = true
		j.emitLocked(Event{Type: EventEndWarning, Status: j.status, WorkSeconds: ws, At: now})
	}

	if ws >= int(j.policy.WorkdayCap/time.Second) {
		j.finishLocked(now, ws)
		return
	}

	j.emitLocked(Event{
		Type:         EventProgress,
		Status:       j.status,
		WorkSeconds:  ws,
		LunchSeconds: j.lunchSecondsLocked(now),
		PauseSeconds: j.pauseSecondsLocked(now),
		At:           now,
	})
}

func (j *Jornada) detectMilestoneLocked(prev, ws int, now time.Time) {
	currentHour := ws / 3600
	previousHour := prev / 3600
	capHours := int(j.policy.WorkdayCap / time.Hour)
	if currentHour <= previousHour || currentHour > capHours {
		return
	}
	// Hour 4 belongs to the lunch alert; the final hour is superseded by
	// the cap transition.
	if currentHour == 4 || currentHour == capHours || j.milestonesFired[currentHour] {
		return
	}
	j.milestonesFired[currentHour] = true
	j.pendingMilestoneHour = currentHour
	j.emitLocked(Event{Type: EventMilestonePrompt, Status: j.status, WorkSeconds: ws, Hour: currentHour, At: now})
}

func (j *Jornada) resolveMilestoneLocked(description string) bool {
	if j.pendingMilestoneHour == 0 {
		return false
	}
	hour := j.pendingMilestoneHour
	if strings.TrimSpace(description) == "" {
		description = fmt.Sprintf("Hour %d completed", hour)
	}
	j.journal.RecordMilestone(hour, description, j.milestonePercentage(hour), j.clock.Now())
	j.pendingMilestoneHour = 0
	return true
}

func (j *Jornada) milestonePercentage(hour int) float64 {
	total := j.policy.WorkdayCap.Hours()
	if total <= 0 {
		return 0
	}
	return math.Round(float64(hour)/total*100*10) / 10
}

// finishLocked transitions to finished, emitting the final entry exactly
// once. Any open intervals must already be closed.
func (j *Jornada) finishLocked(now time.Time, workSeconds int) {
	j.lastWorkSeconds = workSeconds
	j.milestonesFired[int(j.policy.WorkdayCap/time.Hour)] = true

	snap := j.emissionSnapshotLocked(workSeconds)
	entry, err := j.emitter.EmitFinal(context.Background(), snap, now)
	if err != nil {
		slog.Error("emit final time entry", "error", err, "worker_id", j.workerID)
	} else {
		j.emitLocked(Event{Type: EventEntryEmitted, Status: domain.StatusFinished, WorkSeconds: workSeconds, Entry: entry, At: now})
	}

	j.status = domain.StatusFinished
	j.showDaySummary = true
	j.showLunchAlert = false
	j.showEndWarning = false
	j.pendingMilestoneHour = 0
	j.stopTickerLocked()
	j.emitStateLocked(now)

	slog.Info("jornada finished", "worker_id", j.workerID, "work_seconds", workSeconds, "pause_count", j.pauseCount)
}

func (j *Jornada) closeOpenIntervalsLocked(now time.Time) {
	switch j.status {
	case domain.StatusLunch:
		j.acc.AddLunch(j.lunchStartedAt, now)
		j.lunchEndedAt = now
	case domain.StatusPaused:
		j.acc.AddPause(j.pauseStartedAt, now)
		j.pauseStartedAt = time.Time{}
	}
}

// workSecondsLocked returns effective work seconds with any open non-work
// interval excluded, clamped to the workday cap.
func (j *Jornada) workSecondsLocked(now time.Time) int {
	switch j.status {
	case domain.StatusInactive:
		return 0
	case domain.StatusFinished:
		return j.lastWorkSeconds
	}
	d := j.acc.EffectiveWork(now)
	switch j.status {
	case domain.StatusLunch:
		d -= now.Sub(j.lunchStartedAt)
	case domain.StatusPaused:
		d -= now.Sub(j.pauseStartedAt)
	}
	if d < 0 {
		d = 0
	}
	return j.clampWorkSeconds(int(d / time.Second))
}

func (j *Jornada) clampWorkSeconds(ws int) int {
	if capSecs := int(j.policy.WorkdayCap / time.Second); ws > capSecs {
		return capSecs
	}
	return ws
}

func (j *Jornada) lunchSecondsLocked(now time.Time) int {
	s := j.acc.LunchSeconds()
	if j.status == domain.StatusLunch {
		if open := now.Sub(j.lunchStartedAt); open > 0 {
			s += int(open / time.Second)
		}
	}
	return s
}

func (j *Jornada) pauseSecondsLocked(now time.Time) int {
	s := j.acc.PauseSeconds()
	if j.status == domain.StatusPaused {
		if open := now.Sub(j.pauseStartedAt); open > 0 {
			s += int(open / time.Second)
		}
	}
	return s
}

func (j *Jornada) emissionSnapshotLocked(workSeconds int) Snapshot {
	return Snapshot{
		Status:             j.status,
		WorkerID:           j.workerID,
		ProjectID:          j.projectID,
		TaskID:             j.taskID,
		StartedAt:          j.startedAt,
		ElapsedWorkSeconds: workSeconds,
		PauseCount:         j.pauseCount,
		LunchStartedAt:     optionalTime(j.lunchStartedAt),
		LunchEndedAt:       optionalTime(j.lunchEndedAt),
		ProgressPercentage: j.journal.LatestPercentage(),
		LatestNote:         j.journal.LatestNote(),
	}
}

func (j *Jornada) startTickerLocked() {
	if j.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	j.tickerStop = stop
	go j.run(stop)
}

func (j *Jornada) stopTickerLocked() {
	if j.tickerStop != nil {
		close(j.tickerStop)
		j.tickerStop = nil
	}
}

func (j *Jornada) run(stop chan struct{}) {
	ticker := time.NewTicker(j.policy.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			j.Tick(j.clock.Now())
		}
	}
}

func (j *Jornada) emitStateLocked(now time.Time) {
	j.emitLocked(Event{
		Type:         EventStateChange,
		Status:       j.status,
		WorkSeconds:  j.workSecondsLocked(now),
		LunchSeconds: j.lunchSecondsLocked(now),
		PauseSeconds: j.pauseSecondsLocked(now),
		At:           now,
	})
}

func (j *Jornada) emitLocked(event Event) {
	for _, ch := range j.events {
		select {
		case ch <- event:
		default:
		}
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
