// Package sync provides the reconciliation engine that drains the
// mutation queue against the remote peer.
package sync

import (
	"context"

	"github.com/taskdock/taskdock/internal/models"
	"github.com/taskdock/taskdock/internal/sync/protocol"
)

// The engine depends only on these interfaces; it never branches on
// which storage or transport implementation it received.

// Store is the task store surface the engine consumes.
type Store interface {
	// Get returns the task under id, or (nil, nil) if none exists.
	Get(id string) (*models.Task, error)

	// Upsert writes the full task row, inserting or replacing by id.
	Upsert(task *models.Task) error

	// MarkSyncState updates a task's sync bookkeeping. Empty remoteID
	// and zero syncedAt leave the existing metadata untouched.
	MarkSyncState(id string, state models.SyncState, remoteID string, syncedAt int64) error

	// RecordConflict archives a resolved conflict.
	RecordConflict(log *models.ConflictLog) error
}

// MutationQueue is the durable queue surface the engine consumes.
type MutationQueue interface {
	// All returns every queued item, oldest first.
	All() ([]*models.QueueItem, error)

	// Remove deletes an item; removing an unknown id is a no-op.
	Remove(id string) error

	// RecordFailure increments an item's retry count and returns the
	// updated count.
	RecordFailure(id, errorMessage string) (int, error)
}

// Transport exchanges batches with the remote peer.
type Transport interface {
	// CheckConnectivity probes the peer; failures resolve to false.
	CheckConnectivity(ctx context.Context) bool

	// Send exchanges one batch for its dispositions. Any transport-level
	// failure fails the whole batch.
	Send(ctx context.Context, items []*models.QueueItem) (*protocol.BatchResponse, error)
}

// Syncer is the trigger surface exposed to schedulers and CLIs.
type Syncer interface {
	Sync(ctx context.Context) (*Result, error)
}

// Wire types re-exported for disposition handling.
type Disposition = protocol.Disposition

const (
	StatusSuccess  = protocol.StatusSuccess
	StatusConflict = protocol.StatusConflict
	StatusError    = protocol.StatusError
)
