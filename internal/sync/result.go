// Package sync provides the reconciliation engine that drains the
// mutation queue against the remote peer.
package sync

import (
	"time"

	"github.com/taskdock/taskdock/internal/models"
)

// Result is the aggregate outcome of one reconciliation pass. It is
// produced fresh per pass and never persisted.
type Result struct {
	Success     bool
	SyncedItems int
	FailedItems int
	Errors      []ItemError

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// ItemError describes one failed item (or the single connectivity
// failure, which carries no task id).
type ItemError struct {
	TaskID    string
	Operation models.Operation
	Message   string
	Timestamp int64
}
