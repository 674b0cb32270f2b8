package domain

import "time"

// Worker holds identity for a tracked worker.
type Worker struct {
	WorkerID    string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
