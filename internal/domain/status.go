// Package domain defines the shared types of the jornada tracking system.
package domain

// Status is the lifecycle state of a worker's jornada.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusWorking  Status = "working"
	StatusLunch    Status = "lunch"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// Active reports whether the session is in progress, i.e. the worker has
// started the day and has not yet finished it.
func (s Status) Active() bool {
	switch s {
	case StatusWorking, StatusLunch, StatusPaused:
		return true
	default:
		return false
	}
}
