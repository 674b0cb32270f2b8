package timer

import "time"

// Accumulator derives elapsed work time from absolute timestamps. Totals
// are never incremented per tick; every read recomputes from the recorded
// boundaries, so delayed or missed ticks cannot skew the result.
type Accumulator struct {
	workStart   time.Time
	totalLunch  time.Duration
	totalPaused time.Duration
}

// StartWork records the session start and clears accumulated non-work time.
func (a *Accumulator) StartWork(now time.Time) {
	a.workStart = now
	a.totalLunch = 0
	a.totalPaused = 0
}

// AddLunch folds a closed lunch interval into the non-work total.
// Negative intervals (clock anomalies) are ignored.
func (a *Accumulator) AddLunch(start, end time.Time) {
	if d := end.Sub(start); d > 0 {
		a.totalLunch += d
	}
}

// AddPause folds a closed pause interval into the non-work total.
func (a *Accumulator) AddPause(start, end time.Time) {
	if d := end.Sub(start); d > 0 {
		a.totalPaused += d
	}
}

// EffectiveWork returns wall-clock time since StartWork minus all closed
// lunch and pause intervals, floored at zero.
func (a *Accumulator) EffectiveWork(now time.Time) time.Duration {
	if a.workStart.IsZero() {
		return 0
	}
	d := now.Sub(a.workStart) - a.totalLunch - a.totalPaused
	if d < 0 {
		return 0
	}
	return d
}

// EffectiveWorkSeconds returns EffectiveWork truncated to whole seconds.
func (a *Accumulator) EffectiveWorkSeconds(now time.Time) int {
	return int(a.EffectiveWork(now) / time.Second)
}

// LunchSeconds returns the closed lunch total in whole seconds.
func (a *Accumulator) LunchSeconds() int {
	return int(a.totalLunch / time.Second)
}

// PauseSeconds returns the closed pause total in whole seconds.
func (a *Accumulator) PauseSeconds() int {
	return int(a.totalPaused / time.Second)
}
