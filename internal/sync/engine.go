// Package sync provides the reconciliation engine that drains the
// mutation queue against the remote peer.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/taskdock/taskdock/internal/config"
	"github.com/taskdock/taskdock/internal/logging"
	"github.com/taskdock/taskdock/internal/models"
	"github.com/taskdock/taskdock/internal/sync/conflict"
)

// Engine owns one reconciliation pass: connectivity check, queue drain,
// batching, dispatch, disposition application, and retry bookkeeping.
//
// The engine assumes at most one pass in flight at a time; callers
// wanting periodic or overlapping triggers must serialize them (the
// scheduler package does). Running two passes concurrently is undefined
// behavior for retry accounting.
type Engine struct {
	store     Store
	queue     MutationQueue
	transport Transport
	cfg       config.SyncConfig

	lastSync *time.Time
}

// NewEngine creates an Engine. The configuration is captured at
// construction; nothing is read from the environment afterwards.
func NewEngine(store Store, queue MutationQueue, transport Transport, cfg config.SyncConfig) *Engine {
	return &Engine{
		store:     store,
		queue:     queue,
		transport: transport,
		cfg:       cfg,
	}
}

// LastSync returns when the last fully successful pass finished.
func (e *Engine) LastSync() *time.Time {
	return e.lastSync
}

// Sync runs one reconciliation pass to completion. Sync-logic outcomes
// (rejections, transport failures, conflicts) land in the Result; only
// storage faults on the local queue or task store return an error.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	result := &Result{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	// Step 1: connectivity check. An unreachable peer aborts the pass
	// before any queue mutation, so retry counts see no churn.
	if !e.transport.CheckConnectivity(ctx) {
		result.Success = false
		result.Errors = append(result.Errors, ItemError{
			Message:   "remote peer unreachable",
			Timestamp: time.Now().Unix(),
		})
		logging.Warn("Sync aborted: remote peer unreachable", map[string]interface{}{
			"endpoint": e.cfg.Endpoint,
		})
		return result, nil
	}

	// Step 2: drain the durable queue.
	items, err := e.queue.All()
	if err != nil {
		return nil, fmt.Errorf("failed to read mutation queue: %w", err)
	}
	if len(items) == 0 {
		result.Success = true
		now := time.Now()
		e.lastSync = &now
		return result, nil
	}

	logging.Info("Sync pass started", map[string]interface{}{
		"queued_items": len(items),
		"batch_size":   e.cfg.BatchSize,
	})

	// Steps 3-4: dispatch fixed-size batches in enqueue order and apply
	// dispositions. Batches run sequentially; later batches must observe
	// the store and queue mutations of earlier ones.
	for _, batch := range partition(items, e.cfg.BatchSize) {
		if err := e.exchangeBatch(ctx, batch, result); err != nil {
			return nil, err
		}
	}

	result.Success = result.FailedItems == 0
	if result.Success {
		now := time.Now()
		e.lastSync = &now
	}

	logging.Info("Sync pass finished", map[string]interface{}{
		"synced": result.SyncedItems,
		"failed": result.FailedItems,
	})

	return result, nil
}

// exchangeBatch sends one batch and applies its dispositions. A transport
// failure degrades to a per-item failure for every item in the batch, so
// bookkeeping stays uniform with per-item rejections.
func (e *Engine) exchangeBatch(ctx context.Context, batch []*models.QueueItem, result *Result) error {
	response, err := e.transport.Send(ctx, batch)
	if err != nil {
		logging.Warn("Batch exchange failed", map[string]interface{}{
			"items": len(batch),
			"error": err.Error(),
		})
		for _, item := range batch {
			if failErr := e.failItem(item, err.Error(), result); failErr != nil {
				return failErr
			}
		}
		return nil
	}

	// Correlate by id, never by position: the remote side processes
	// items independently and may answer in any order.
	byID := response.ByID()

	for _, item := range batch {
		disposition, ok := byID[string(item.ID)]
		if !ok {
			if err := e.failItem(item, "no disposition returned for item", result); err != nil {
				return err
			}
			continue
		}

		switch disposition.Status {
		case StatusSuccess:
			if err := e.applySuccess(item, disposition, result); err != nil {
				return err
			}
		case StatusConflict:
			if disposition.Task == nil {
				// The server owes us its version to resolve against.
				if err := e.failItem(item, "conflict disposition missing remote task", result); err != nil {
					return err
				}
				continue
			}
			if err := e.applyConflict(item, disposition, result); err != nil {
				return err
			}
		default:
			if err := e.failItem(item, dispositionError(disposition), result); err != nil {
				return err
			}
		}
	}

	return nil
}

// applySuccess commits a confirmed mutation: adopt the server-resolved
// version, stamp the sync bookkeeping, and dequeue the item.
func (e *Engine) applySuccess(item *models.QueueItem, d Disposition, result *Result) error {
	now := time.Now().Unix()
	taskID := string(item.TaskID)

	if d.Task != nil {
		task := d.Task.ToModel()
		task.SyncState = models.SyncStateSynced
		task.LastSyncedAt = now
		task.RemoteID = d.RemoteID
		if task.RemoteID == "" {
			if local, err := e.store.Get(taskID); err != nil {
				return fmt.Errorf("failed to read task %s: %w", taskID, err)
			} else if local != nil {
				task.RemoteID = local.RemoteID
			}
		}
		if err := e.store.Upsert(task); err != nil {
			return fmt.Errorf("failed to commit task %s: %w", taskID, err)
		}
	} else {
		// Success without a snapshot (e.g. delete of a task the server
		// never saw): mark the local copy only.
		if err := e.store.MarkSyncState(taskID, models.SyncStateSynced, d.RemoteID, now); err != nil {
			return fmt.Errorf("failed to mark task %s synced: %w", taskID, err)
		}
	}

	if err := e.queue.Remove(string(item.ID)); err != nil {
		return fmt.Errorf("failed to dequeue item %s: %w", item.ID, err)
	}

	result.SyncedItems++
	return nil
}

// applyConflict settles a conflict: resolve against the current local
// version, archive the loser, persist the winner, and dequeue the item
// regardless of which side won.
func (e *Engine) applyConflict(item *models.QueueItem, d Disposition, result *Result) error {
	now := time.Now().Unix()
	taskID := string(item.TaskID)

	local, err := e.store.Get(taskID)
	if err != nil {
		return fmt.Errorf("failed to read task %s: %w", taskID, err)
	}
	remote := d.Task.ToModel()

	winner := conflict.Resolve(local, remote)
	if err := e.store.RecordConflict(conflict.BuildLog(local, remote, winner)); err != nil {
		return fmt.Errorf("failed to archive conflict for task %s: %w", taskID, err)
	}

	settled := *winner
	settled.SyncState = models.SyncStateSynced
	settled.LastSyncedAt = now
	if d.RemoteID != "" {
		settled.RemoteID = d.RemoteID
	} else if settled.RemoteID == "" && local != nil {
		settled.RemoteID = local.RemoteID
	}

	if err := e.store.Upsert(&settled); err != nil {
		return fmt.Errorf("failed to persist conflict winner for task %s: %w", taskID, err)
	}

	if err := e.queue.Remove(string(item.ID)); err != nil {
		return fmt.Errorf("failed to dequeue item %s: %w", item.ID, err)
	}

	logging.Info("Conflict settled", map[string]interface{}{
		"task_id":    taskID,
		"resolution": conflict.Winner(local, remote),
	})

	result.SyncedItems++
	return nil
}

// failItem records one failed attempt. At the retry ceiling the item is
// dequeued and its task marked with the error state for external
// surfacing; below it the item stays queued for the next pass.
func (e *Engine) failItem(item *models.QueueItem, message string, result *Result) error {
	count, err := e.queue.RecordFailure(string(item.ID), message)
	if err != nil {
		return fmt.Errorf("failed to record failure for item %s: %w", item.ID, err)
	}

	if count >= e.cfg.MaxRetries {
		if err := e.store.MarkSyncState(string(item.TaskID), models.SyncStateError, "", 0); err != nil {
			return fmt.Errorf("failed to mark task %s errored: %w", item.TaskID, err)
		}
		if err := e.queue.Remove(string(item.ID)); err != nil {
			return fmt.Errorf("failed to dequeue item %s: %w", item.ID, err)
		}
		logging.Warn("Queue item permanently failed", map[string]interface{}{
			"item_id": string(item.ID),
			"task_id": string(item.TaskID),
			"retries": count,
			"error":   message,
		})
	}

	result.FailedItems++
	result.Errors = append(result.Errors, ItemError{
		TaskID:    string(item.TaskID),
		Operation: item.Operation,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// partition splits items into batches of at most size, preserving order.
func partition(items []*models.QueueItem, size int) [][]*models.QueueItem {
	if size < 1 {
		size = 1
	}
	var batches [][]*models.QueueItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

func dispositionError(d Disposition) string {
	if d.Error != "" {
		return d.Error
	}
	return "item rejected by remote peer"
}
