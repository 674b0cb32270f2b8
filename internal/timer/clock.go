// Package timer implements the jornada lifecycle: a per-worker state
// machine that accumulates effective work time net of lunch and pauses,
// enforces break and overtime policy, and emits time entries.
package timer

import "time"

// Clock supplies the current time. Injecting it keeps every threshold and
// elapsed-time computation deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }
