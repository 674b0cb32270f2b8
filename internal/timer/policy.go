package timer

import "time"

// Policy holds the workday thresholds. The lunch alert and end warning are
// not timeouts: they are checks against accumulated effective work time,
// evaluated on every tick.
type Policy struct {
	// WorkdayCap is the hard limit of effective work; reaching it forces
	// the session to finish.
	WorkdayCap time.Duration
	// LunchAfter is the effective work time after which the mandatory
	// lunch alert fires.
	LunchAfter time.Duration
	// EndWarningAt is the effective work time at which the end-of-day
	// warning fires.
	EndWarningAt time.Duration
	// EditWindow is how long an emitted entry stays editable after close.
	EditWindow time.Duration
	// TickInterval is the cadence of the session ticker.
	TickInterval time.Duration
}

// DefaultPolicy returns the standard 8-hour jornada policy.
func DefaultPolicy() Policy {
	return Policy{
		WorkdayCap:   8 * time.Hour,
		LunchAfter:   4 * time.Hour,
		EndWarningAt: 7*time.Hour + 55*time.Minute,
		EditWindow:   24 * time.Hour,
		TickInterval: time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.WorkdayCap <= 0 {
		p.WorkdayCap = def.WorkdayCap
	}
	if p.LunchAfter <= 0 {
		p.LunchAfter = def.LunchAfter
	}
	if p.EndWarningAt <= 0 || p.EndWarningAt > p.WorkdayCap {
		p.EndWarningAt = p.WorkdayCap - 5*time.Minute
	}
	if p.EditWindow <= 0 {
		p.EditWindow = def.EditWindow
	}
	if p.TickInterval <= 0 {
		p.TickInterval = def.TickInterval
	}
	return p
}
